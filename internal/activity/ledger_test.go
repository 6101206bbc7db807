package activity

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/memory"
)

var today = daykey.MustParse("2024-05-10")

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLedger(t *testing.T, days ...daykey.Key) (*Ledger, *countingStore) {
	t.Helper()
	s := &countingStore{Store: memory.New()}
	l := Open(context.Background(), s, WithLogger(quietLogger()))
	for _, d := range days {
		_, err := l.LogAction(context.Background(), d, KindMeal)
		require.NoError(t, err)
	}
	s.puts = 0
	return l, s
}

func TestLogActionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)

	changed, err := l.LogAction(ctx, today, KindMeal)
	require.NoError(t, err)
	require.True(t, changed)

	for i := 0; i < 3; i++ {
		changed, err = l.LogAction(ctx, today, KindMeal)
		require.NoError(t, err)
		require.False(t, changed)
	}

	rec, ok := l.Record(today)
	require.True(t, ok)
	require.Equal(t, []Kind{KindMeal}, rec.Actions)
	require.Equal(t, 1, s.puts, "repeat logs must not rewrite the store")
}

func TestLogActionMergesKindsIntoOneRecord(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	for _, k := range []Kind{KindSleep, KindMeal, KindSleep, KindPlanner} {
		_, err := l.LogAction(ctx, today, k)
		require.NoError(t, err)
	}

	require.Len(t, l.Records(), 1)
	rec, _ := l.Record(today)
	require.Equal(t, []Kind{KindSleep, KindMeal, KindPlanner}, rec.Actions)
}

func TestLogActionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)

	_, err := l.LogAction(ctx, today, Kind("yoga"))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = l.LogAction(ctx, daykey.Key("05/10/2024"), KindMeal)
	require.ErrorIs(t, err, ErrInvalidDay)
	require.Zero(t, s.puts)
}

func TestLogActionKeepsMemoryUnchangedWhenSaveFails(t *testing.T) {
	l, s := newLedger(t)
	s.failWith = errors.New("disk full")

	_, err := l.LogAction(context.Background(), today, KindMeal)
	require.Error(t, err)

	_, ok := l.Record(today)
	require.False(t, ok)
	require.Zero(t, l.CurrentStreak(today))
}

func TestCurrentStreak(t *testing.T) {
	cases := []struct {
		name string
		days []daykey.Key
		want int
	}{
		{name: "empty ledger", want: 0},
		{name: "three consecutive days", days: []daykey.Key{today, today.AddDays(-1), today.AddDays(-2)}, want: 3},
		{name: "gap at yesterday", days: []daykey.Key{today, today.AddDays(-2)}, want: 1},
		{name: "grace day", days: []daykey.Key{today.AddDays(-1)}, want: 1},
		{name: "grace day with history", days: []daykey.Key{today.AddDays(-1), today.AddDays(-2), today.AddDays(-3), today.AddDays(-5)}, want: 3},
		{name: "two days ago only", days: []daykey.Key{today.AddDays(-2), today.AddDays(-3)}, want: 0},
		{name: "stale history", days: []daykey.Key{daykey.MustParse("2024-05-01"), daykey.MustParse("2024-04-30"), daykey.MustParse("2024-04-29")}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newLedger(t, tc.days...)
			require.Equal(t, tc.want, l.CurrentStreak(today))
		})
	}
}

func TestCurrentStreakAcrossMonthBoundary(t *testing.T) {
	first := daykey.MustParse("2024-03-01")
	l, _ := newLedger(t, first, daykey.MustParse("2024-02-29"), daykey.MustParse("2024-02-28"))
	require.Equal(t, 3, l.CurrentStreak(first))
	require.Equal(t, 3, l.CurrentStreak(first.AddDays(1)))
	require.Equal(t, 0, l.CurrentStreak(first.AddDays(2)))
}

func TestLongestStreak(t *testing.T) {
	l, _ := newLedger(t,
		today.AddDays(-10), today.AddDays(-9), today.AddDays(-8), today.AddDays(-7),
		today.AddDays(-3), today.AddDays(-2),
		today,
	)
	require.Equal(t, 4, l.LongestStreak())
	require.Equal(t, 1, l.CurrentStreak(today))
}

func TestMonthCalendar(t *testing.T) {
	l, _ := newLedger(t, daykey.MustParse("2024-02-01"), daykey.MustParse("2024-02-29"), daykey.MustParse("2024-03-01"))

	month := daykey.Month{Year: 2024, Month: time.February}
	cells := l.MonthCalendar(month, daykey.MustParse("2024-02-14"))
	require.Len(t, cells, 29)

	for i, c := range cells {
		require.Equal(t, i+1, c.Day)
	}
	require.True(t, cells[0].HasRecord)
	require.True(t, cells[28].HasRecord)
	require.False(t, cells[13].HasRecord)
	require.True(t, cells[13].IsToday)

	todayCount := 0
	for _, c := range cells {
		if c.IsToday {
			todayCount++
		}
	}
	require.Equal(t, 1, todayCount)

	// today outside the month marks nothing
	for _, c := range l.MonthCalendar(month, daykey.MustParse("2024-03-14")) {
		require.False(t, c.IsToday)
	}
}

func TestCountByKindAndStats(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	for i := 0; i < 10; i++ {
		_, err := l.LogAction(ctx, today.AddDays(-i), KindMeal)
		require.NoError(t, err)
	}
	_, err := l.LogAction(ctx, today, KindPlanner)
	require.NoError(t, err)
	_, err = l.LogAction(ctx, today.AddDays(-1), KindSleep)
	require.NoError(t, err)

	require.Equal(t, 10, l.CountByKind(KindMeal))
	require.Equal(t, 1, l.CountByKind(KindPlanner))

	stats := l.Stats(today)
	require.Equal(t, 10, stats.CurrentStreak)
	require.Equal(t, 10, stats.LongestStreak)
	require.Equal(t, 10, stats.ActiveDays)
	require.Equal(t, 1, stats.TotalWorkouts)
	require.Equal(t, 1, stats.TotalSleepLogs)

	earned := map[string]bool{}
	for _, b := range stats.Badges {
		earned[b.ID] = b.Earned
	}
	require.Equal(t, map[string]bool{"streak_3": true, "streak_7": true, "meals_10": true}, earned)
}

func TestOpenDiscardsMalformedRecordsAndMergesDuplicates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeyActivity, []byte(`[
		{"date":"2024-05-09","actions":["meal","meal"]},
		{"date":"not-a-day","actions":["meal"]},
		{"date":"2024-5-8","actions":["sleep"]},
		{"date":"2024-05-08","actions":["dance"]},
		{"date":"2024-05-10","actions":["planner","dance"]},
		{"date":"2024-05-09","actions":["sleep"]}
	]`)))

	l := Open(ctx, s, WithLogger(quietLogger()))
	records := l.Records()
	require.Equal(t, []Record{
		{Day: "2024-05-09", Actions: []Kind{KindMeal, KindSleep}},
		{Day: "2024-05-10", Actions: []Kind{KindPlanner}},
	}, records)
	require.Equal(t, 2, l.CurrentStreak(today))
}

func TestOpenKeepsValidRecordsBesideMistypedOne(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeyActivity, []byte(`[
		{"date":"2024-05-01","actions":["meal"]},
		{"date":"2024-05-02","actions":["sleep"]},
		{"date":20240503,"actions":["planner"]}
	]`)))

	l := Open(ctx, s, WithLogger(quietLogger()))
	require.Len(t, l.Records(), 2)

	_, err := l.LogAction(ctx, daykey.MustParse("2024-05-04"), KindPlanner)
	require.NoError(t, err)

	reopened := Open(ctx, s, WithLogger(quietLogger()))
	require.Equal(t, []Record{
		{Day: "2024-05-01", Actions: []Kind{KindMeal}},
		{Day: "2024-05-02", Actions: []Kind{KindSleep}},
		{Day: "2024-05-04", Actions: []Kind{KindPlanner}},
	}, reopened.Records())
}

func TestOpenCorruptDocumentStartsEmpty(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeyActivity, []byte(`{{{`)))

	l := Open(ctx, s, WithLogger(quietLogger()))
	require.Empty(t, l.Records())
	require.Zero(t, l.CurrentStreak(today))
}

func TestLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	l := Open(ctx, s, WithLogger(quietLogger()))
	_, err := l.LogAction(ctx, today, KindMeal)
	require.NoError(t, err)
	_, err = l.LogAction(ctx, today.AddDays(-1), KindSleep)
	require.NoError(t, err)

	reopened := Open(ctx, s, WithLogger(quietLogger()))
	require.Equal(t, l.Records(), reopened.Records())
	require.Equal(t, 2, reopened.CurrentStreak(today))
}

type countingStore struct {
	store.Store
	puts     int
	failWith error
}

func (c *countingStore) Put(ctx context.Context, key string, value []byte) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.puts++
	return c.Store.Put(ctx, key, value)
}
