// Package recovery keeps the sleep and soreness history, one log per day.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/store"
)

// ErrInvalidInput is returned when a sleep log fails validation.
var ErrInvalidInput = errors.New("invalid recovery input")

// Quality rates how well the user slept.
type Quality string

const (
	QualityPoor      Quality = "Poor"
	QualityFair      Quality = "Fair"
	QualityGood      Quality = "Good"
	QualityExcellent Quality = "Excellent"
)

// Valid reports whether q is one of the known ratings.
func (q Quality) Valid() bool {
	switch q {
	case QualityPoor, QualityFair, QualityGood, QualityExcellent:
		return true
	}
	return false
}

// Soreness rates muscle soreness on waking.
type Soreness string

const (
	SorenessNone   Soreness = "None"
	SorenessLow    Soreness = "Low"
	SorenessMedium Soreness = "Medium"
	SorenessHigh   Soreness = "High"
)

// Valid reports whether s is one of the known ratings.
func (s Soreness) Valid() bool {
	switch s {
	case SorenessNone, SorenessLow, SorenessMedium, SorenessHigh:
		return true
	}
	return false
}

// ParseQuality accepts any casing of a known rating.
func ParseQuality(raw string) (Quality, error) {
	for _, q := range []Quality{QualityPoor, QualityFair, QualityGood, QualityExcellent} {
		if strings.EqualFold(raw, string(q)) {
			return q, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sleep quality %q", ErrInvalidInput, raw)
}

// ParseSoreness accepts any casing of a known rating.
func ParseSoreness(raw string) (Soreness, error) {
	for _, s := range []Soreness{SorenessNone, SorenessLow, SorenessMedium, SorenessHigh} {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown soreness %q", ErrInvalidInput, raw)
}

// Input is what the user reports.
type Input struct {
	Hours    float64
	Quality  Quality
	Soreness Soreness
}

// Validate checks hours and both ratings.
func (in Input) Validate() error {
	if in.Hours < 0 || in.Hours > 24 {
		return fmt.Errorf("%w: hours must be within [0, 24], got %v", ErrInvalidInput, in.Hours)
	}
	if !in.Quality.Valid() {
		return fmt.Errorf("%w: unknown sleep quality %q", ErrInvalidInput, in.Quality)
	}
	if !in.Soreness.Valid() {
		return fmt.Errorf("%w: unknown soreness %q", ErrInvalidInput, in.Soreness)
	}
	return nil
}

// Analysis is the collaborator's verdict on an Input. A nil score means the
// analysis produced none.
type Analysis struct {
	ReadinessScore *int
	Feedback       string
}

func (a Analysis) validate() error {
	if a.ReadinessScore != nil && (*a.ReadinessScore < 0 || *a.ReadinessScore > 100) {
		return fmt.Errorf("%w: readiness score must be within [0, 100], got %d", ErrInvalidInput, *a.ReadinessScore)
	}
	return nil
}

// Log is one persisted night.
type Log struct {
	ID             string     `json:"id"`
	Day            daykey.Key `json:"date"`
	Hours          float64    `json:"hours"`
	Quality        Quality    `json:"quality"`
	Soreness       Soreness   `json:"soreness"`
	ReadinessScore *int       `json:"readinessScore,omitempty"`
	Feedback       string     `json:"feedback,omitempty"`
}

// Option configures optional behaviour for the History.
type Option func(*History)

// WithLogger overrides the logger used to report discarded logs.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *History) {
		h.logger = logger
	}
}

// WithIDGenerator replaces uuid.NewString for log ids.
func WithIDGenerator(fn func() string) Option {
	return func(h *History) {
		h.newID = fn
	}
}

// History owns the sleep logs. It is not safe for concurrent use.
type History struct {
	store  store.Store
	logger logrus.FieldLogger
	newID  func() string
	logs   []Log // most recent day first
}

// Open loads persisted logs, keeping the first log seen for each day.
func Open(ctx context.Context, s store.Store, opts ...Option) *History {
	h := &History{
		store:  s,
		logger: logrus.StandardLogger(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}

	raw := store.LoadList[Log](ctx, s, store.KeySleep)
	logs := make([]Log, 0, len(raw))
	seen := make(map[daykey.Key]struct{}, len(raw))
	discarded := 0
	for _, l := range raw {
		_, dup := seen[l.Day]
		in := Input{Hours: l.Hours, Quality: l.Quality, Soreness: l.Soreness}
		res := Analysis{ReadinessScore: l.ReadinessScore}
		if dup || !l.Day.Valid() || in.Validate() != nil || res.validate() != nil {
			discarded++
			h.logger.WithFields(logrus.Fields{"id": l.ID, "date": string(l.Day)}).Warn("discarding invalid sleep log")
			continue
		}
		seen[l.Day] = struct{}{}
		logs = append(logs, l)
	}
	sortByDayDesc(logs)
	h.logs = logs
	observability.RecordDiscarded(store.KeySleep, discarded)
	return h
}

func sortByDayDesc(logs []Log) {
	slices.SortStableFunc(logs, func(a, b Log) int {
		return strings.Compare(string(b.Day), string(a.Day))
	})
}

// RecordAnalysis stores the log for day, replacing any earlier log for the
// same day.
func (h *History) RecordAnalysis(ctx context.Context, day daykey.Key, in Input, res Analysis) (Log, error) {
	if !day.Valid() {
		return Log{}, fmt.Errorf("%w: invalid day %q", ErrInvalidInput, day)
	}
	if err := in.Validate(); err != nil {
		return Log{}, err
	}
	if err := res.validate(); err != nil {
		return Log{}, err
	}

	entry := Log{
		ID:       h.newID(),
		Day:      day,
		Hours:    in.Hours,
		Quality:  in.Quality,
		Soreness: in.Soreness,
		Feedback: res.Feedback,
	}
	if res.ReadinessScore != nil {
		score := *res.ReadinessScore
		entry.ReadinessScore = &score
	}

	next := make([]Log, 0, len(h.logs)+1)
	next = append(next, entry)
	for _, l := range h.logs {
		if l.Day != day {
			next = append(next, l)
		}
	}
	sortByDayDesc(next)

	if err := store.Save(ctx, h.store, store.KeySleep, next); err != nil {
		return Log{}, err
	}
	h.logs = next
	return entry, nil
}

// LatestForDay returns the log recorded for day.
func (h *History) LatestForDay(day daykey.Key) (Log, bool) {
	for _, l := range h.logs {
		if l.Day == day {
			return l, true
		}
	}
	return Log{}, false
}

// History returns up to limit logs, most recent day first. A limit of zero or
// less returns everything.
func (h *History) History(limit int) []Log {
	if limit <= 0 || limit > len(h.logs) {
		limit = len(h.logs)
	}
	return slices.Clone(h.logs[:limit])
}

// AverageReadiness averages the scores of the lastN most recent logs that
// carry one. It reports false when none do.
func (h *History) AverageReadiness(lastN int) (float64, bool) {
	sum, n := 0, 0
	for _, l := range h.logs {
		if lastN > 0 && n == lastN {
			break
		}
		if l.ReadinessScore == nil {
			continue
		}
		sum += *l.ReadinessScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// Band is a coarse readiness bucket.
type Band string

const (
	BandHigh   Band = "High"
	BandMedium Band = "Medium"
	BandLow    Band = "Low"
)

// ScoreBand buckets a readiness score.
func ScoreBand(score int) Band {
	switch {
	case score >= 80:
		return BandHigh
	case score >= 60:
		return BandMedium
	default:
		return BandLow
	}
}
