package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/memory"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func score(n int) *int { return &n }

func newHistory(t *testing.T, s store.Store) *History {
	t.Helper()
	if s == nil {
		s = memory.New()
	}
	n := 0
	return Open(context.Background(), s, WithLogger(quietLogger()), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("sleep-%d", n)
	}))
}

var good = Input{Hours: 7.5, Quality: QualityGood, Soreness: SorenessLow}

func TestRecordAnalysisReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, nil)
	day := daykey.MustParse("2024-05-01")

	_, err := h.RecordAnalysis(ctx, day, good, Analysis{ReadinessScore: score(55), Feedback: "take it easy"})
	require.NoError(t, err)
	_, err = h.RecordAnalysis(ctx, day, Input{Hours: 8, Quality: QualityExcellent, Soreness: SorenessNone}, Analysis{ReadinessScore: score(90), Feedback: "go hard"})
	require.NoError(t, err)

	logs := h.History(0)
	require.Len(t, logs, 1)
	require.Equal(t, 8.0, logs[0].Hours)
	require.Equal(t, 90, *logs[0].ReadinessScore)
	require.Equal(t, "go hard", logs[0].Feedback)
}

func TestHistoryIsMostRecentDayFirst(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, nil)

	for _, d := range []string{"2024-05-02", "2024-05-04", "2024-05-01", "2024-05-03"} {
		_, err := h.RecordAnalysis(ctx, daykey.MustParse(d), good, Analysis{})
		require.NoError(t, err)
	}
	// Replacing an older day must not move it to the front.
	_, err := h.RecordAnalysis(ctx, daykey.MustParse("2024-05-02"), good, Analysis{ReadinessScore: score(70)})
	require.NoError(t, err)

	var days []daykey.Key
	for _, l := range h.History(0) {
		days = append(days, l.Day)
	}
	require.Equal(t, []daykey.Key{"2024-05-04", "2024-05-03", "2024-05-02", "2024-05-01"}, days)
	require.Len(t, h.History(2), 2)
}

func TestRecordAnalysisValidates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	h := newHistory(t, s)
	day := daykey.MustParse("2024-05-01")

	cases := []struct {
		name string
		in   Input
		res  Analysis
	}{
		{"negative hours", Input{Hours: -1, Quality: QualityGood, Soreness: SorenessNone}, Analysis{}},
		{"too many hours", Input{Hours: 24.5, Quality: QualityGood, Soreness: SorenessNone}, Analysis{}},
		{"unknown quality", Input{Hours: 7, Quality: "Great", Soreness: SorenessNone}, Analysis{}},
		{"unknown soreness", Input{Hours: 7, Quality: QualityGood, Soreness: "Extreme"}, Analysis{}},
		{"score too high", good, Analysis{ReadinessScore: score(101)}},
		{"score negative", good, Analysis{ReadinessScore: score(-1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.RecordAnalysis(ctx, day, tc.in, tc.res)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := h.RecordAnalysis(ctx, "yesterday", good, Analysis{})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Empty(t, h.History(0))
	_, err = s.Get(ctx, store.KeySleep)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBoundaryValuesAccepted(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, nil)

	_, err := h.RecordAnalysis(ctx, daykey.MustParse("2024-05-01"), Input{Hours: 0, Quality: QualityPoor, Soreness: SorenessHigh}, Analysis{ReadinessScore: score(0)})
	require.NoError(t, err)
	_, err = h.RecordAnalysis(ctx, daykey.MustParse("2024-05-02"), Input{Hours: 24, Quality: QualityFair, Soreness: SorenessMedium}, Analysis{ReadinessScore: score(100)})
	require.NoError(t, err)
}

func TestLatestForDay(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, nil)
	day := daykey.MustParse("2024-05-01")

	_, ok := h.LatestForDay(day)
	require.False(t, ok)

	saved, err := h.RecordAnalysis(ctx, day, good, Analysis{Feedback: "fine"})
	require.NoError(t, err)

	got, ok := h.LatestForDay(day)
	require.True(t, ok)
	require.Equal(t, saved, got)
	require.Nil(t, got.ReadinessScore)
}

func TestScoreBand(t *testing.T) {
	require.Equal(t, BandHigh, ScoreBand(100))
	require.Equal(t, BandHigh, ScoreBand(80))
	require.Equal(t, BandMedium, ScoreBand(79))
	require.Equal(t, BandMedium, ScoreBand(60))
	require.Equal(t, BandLow, ScoreBand(59))
	require.Equal(t, BandLow, ScoreBand(0))
}

func TestAverageReadinessSkipsUnscored(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, nil)

	_, ok := h.AverageReadiness(7)
	require.False(t, ok)

	entries := map[string]*int{
		"2024-05-01": score(40),
		"2024-05-02": score(60),
		"2024-05-03": nil,
		"2024-05-04": score(80),
	}
	for d, sc := range entries {
		_, err := h.RecordAnalysis(ctx, daykey.MustParse(d), good, Analysis{ReadinessScore: sc})
		require.NoError(t, err)
	}

	avg, ok := h.AverageReadiness(2)
	require.True(t, ok)
	require.InDelta(t, 70.0, avg, 1e-9)

	avg, ok = h.AverageReadiness(0)
	require.True(t, ok)
	require.InDelta(t, 60.0, avg, 1e-9)
}

func TestRestartAndCorruptPayload(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	h := newHistory(t, s)
	_, err := h.RecordAnalysis(ctx, daykey.MustParse("2024-05-01"), good, Analysis{ReadinessScore: score(72)})
	require.NoError(t, err)

	reopened := newHistory(t, s)
	got, ok := reopened.LatestForDay(daykey.MustParse("2024-05-01"))
	require.True(t, ok)
	require.Equal(t, 72, *got.ReadinessScore)

	require.NoError(t, s.Put(ctx, store.KeySleep, []byte(`{"not":"an array"`)))
	require.Empty(t, newHistory(t, s).History(0))
}

func TestOpenDropsDuplicateAndInvalidDays(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeySleep, []byte(`[
		{"id":"a","date":"2024-05-01","hours":7,"quality":"Good","soreness":"Low"},
		{"id":"b","date":"2024-05-03","hours":30,"quality":"Good","soreness":"Low"},
		{"id":"c","date":"2024-05-01","hours":5,"quality":"Poor","soreness":"High"},
		{"id":"d","date":"05/02/2024","hours":6,"quality":"Fair","soreness":"None"},
		{"id":"e","date":"2024-05-02","hours":6,"quality":"Meh","soreness":"None"},
		{"id":"f","date":"2024-05-04","hours":9,"quality":"Excellent","soreness":"None","readinessScore":88}
	]`)))

	h := newHistory(t, s)
	logs := h.History(0)
	require.Len(t, logs, 2)
	require.Equal(t, "f", logs[0].ID)
	require.Equal(t, "a", logs[1].ID)
}

func TestOpenKeepsValidLogsBesideMistypedOne(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Put(ctx, store.KeySleep, []byte(`[
		{"id":"a","date":"2024-05-01","hours":7,"quality":"Good","soreness":"Low"},
		{"id":"b","date":"2024-05-02","hours":"seven","quality":"Good","soreness":"Low"},
		{"id":"c","date":"2024-05-03","hours":8,"quality":"Excellent","soreness":"None"}
	]`)))

	logs := newHistory(t, s).History(0)
	require.Len(t, logs, 2)
	require.Equal(t, "c", logs[0].ID)
	require.Equal(t, "a", logs[1].ID)
}

type failingStore struct{ store.Store }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestSaveFailureLeavesHistoryUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t, failingStore{memory.New()})

	_, err := h.RecordAnalysis(ctx, daykey.MustParse("2024-05-01"), good, Analysis{})
	require.Error(t, err)
	require.Empty(t, h.History(0))
}

func TestParseEnums(t *testing.T) {
	q, err := ParseQuality("excellent")
	require.NoError(t, err)
	require.Equal(t, QualityExcellent, q)
	_, err = ParseQuality("great")
	require.ErrorIs(t, err, ErrInvalidInput)

	s, err := ParseSoreness("MEDIUM")
	require.NoError(t, err)
	require.Equal(t, SorenessMedium, s)
	_, err = ParseSoreness("")
	require.ErrorIs(t, err, ErrInvalidInput)
}
