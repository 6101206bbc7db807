package activity

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/store"
)

// Option configures optional behaviour for the Ledger.
type Option func(*Ledger)

// WithLogger overrides the logger used to report discarded records.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// Ledger owns the activity records. It is not safe for concurrent use; the
// tracker serialises access.
type Ledger struct {
	store   store.Store
	logger  logrus.FieldLogger
	records []Record
	byDay   map[daykey.Key]int
}

// Open loads the persisted records. Records with unparsable days or unknown
// kinds are dropped, and duplicate days are merged into the first occurrence.
func Open(ctx context.Context, s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	raw := store.LoadList[Record](ctx, s, store.KeyActivity)
	l.records, l.byDay = l.sanitize(raw)
	return l
}

func (l *Ledger) sanitize(raw []Record) ([]Record, map[daykey.Key]int) {
	records := make([]Record, 0, len(raw))
	byDay := make(map[daykey.Key]int, len(raw))
	discarded := 0

	for _, rec := range raw {
		if !rec.Day.Valid() {
			discarded++
			l.logger.WithField("date", string(rec.Day)).Warn("discarding activity record with invalid day")
			continue
		}
		idx, seen := byDay[rec.Day]
		if !seen {
			idx = len(records)
			byDay[rec.Day] = idx
			records = append(records, Record{Day: rec.Day, Actions: make([]Kind, 0, len(rec.Actions))})
		}
		for _, kind := range rec.Actions {
			if !kind.Valid() {
				l.logger.WithFields(logrus.Fields{"date": rec.Day, "kind": kind}).Warn("dropping unknown action kind")
				continue
			}
			if !records[idx].Has(kind) {
				records[idx].Actions = append(records[idx].Actions, kind)
			}
		}
	}

	// A day whose every action was unknown never had a valid log.
	compacted := records[:0]
	clear(byDay)
	for _, rec := range records {
		if len(rec.Actions) == 0 {
			discarded++
			continue
		}
		byDay[rec.Day] = len(compacted)
		compacted = append(compacted, rec)
	}

	if discarded > 0 {
		observability.RecordDiscarded(store.KeyActivity, discarded)
	}
	return compacted, byDay
}

// LogAction records that kind happened on day. It reports whether anything
// changed: repeating a kind already logged for the day is a no-op and does
// not touch the store.
func (l *Ledger) LogAction(ctx context.Context, day daykey.Key, kind Kind) (bool, error) {
	if !day.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	if !kind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	idx, exists := l.byDay[day]
	if exists && l.records[idx].Has(kind) {
		return false, nil
	}

	next := make([]Record, len(l.records), len(l.records)+1)
	for i, rec := range l.records {
		next[i] = rec.clone()
	}
	if exists {
		next[idx].Actions = append(next[idx].Actions, kind)
	} else {
		next = append(next, Record{Day: day, Actions: []Kind{kind}})
	}

	if err := store.Save(ctx, l.store, store.KeyActivity, next); err != nil {
		return false, err
	}

	l.records = next
	if !exists {
		l.byDay[day] = len(next) - 1
	}
	return true, nil
}

// Record returns the entry for day.
func (l *Ledger) Record(day daykey.Key) (Record, bool) {
	idx, ok := l.byDay[day]
	if !ok {
		return Record{}, false
	}
	return l.records[idx].clone(), true
}

// Records returns every record ordered by day, oldest first.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	for i, rec := range l.records {
		out[i] = rec.clone()
	}
	slices.SortFunc(out, func(a, b Record) int {
		switch {
		case a.Day < b.Day:
			return -1
		case a.Day > b.Day:
			return 1
		}
		return 0
	})
	return out
}

func (l *Ledger) has(day daykey.Key) bool {
	_, ok := l.byDay[day]
	return ok
}

// CurrentStreak counts consecutive recorded days ending at today, or at
// yesterday when today has nothing yet, so a user who has not logged today
// keeps yesterday's streak. A gap at the anchor's previous day ends the walk;
// an older record never reaches across it.
func (l *Ledger) CurrentStreak(today daykey.Key) int {
	anchor := today
	if !l.has(anchor) {
		anchor = today.AddDays(-1)
		if !l.has(anchor) {
			return 0
		}
	}

	streak := 0
	for day := anchor; l.has(day); day = day.AddDays(-1) {
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive recorded days.
func (l *Ledger) LongestStreak() int {
	longest := 0
	for day := range l.byDay {
		// Only start counting at the first day of a run.
		if l.has(day.AddDays(-1)) {
			continue
		}
		run := 0
		for d := day; l.has(d); d = d.AddDays(1) {
			run++
		}
		longest = max(longest, run)
	}
	return longest
}

// CalendarDay is one cell of the monthly activity heatmap.
type CalendarDay struct {
	Day       int        `json:"day"`
	Date      daykey.Key `json:"date"`
	HasRecord bool       `json:"has_record"`
	IsToday   bool       `json:"is_today"`
}

// MonthCalendar returns one cell per day of month in ascending order.
func (l *Ledger) MonthCalendar(month daykey.Month, today daykey.Key) []CalendarDay {
	n := month.Days()
	cells := make([]CalendarDay, 0, n)
	for d := 1; d <= n; d++ {
		key := month.Day(d)
		cells = append(cells, CalendarDay{
			Day:       d,
			Date:      key,
			HasRecord: l.has(key),
			IsToday:   key == today,
		})
	}
	return cells
}

// CountByKind returns how many days include kind.
func (l *Ledger) CountByKind(kind Kind) int {
	count := 0
	for _, rec := range l.records {
		if rec.Has(kind) {
			count++
		}
	}
	return count
}
