// Package activity keeps the per-day record of what the user did and derives
// streaks, the monthly calendar and lifetime totals from it.
package activity

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"example.com/fitledger/internal/daykey"
)

var (
	// ErrUnknownKind is returned for an action kind outside planner/meal/sleep.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrInvalidDay is returned when a day key is not canonical.
	ErrInvalidDay = errors.New("invalid day")
)

// Kind is something the user can do on a given day.
type Kind string

const (
	KindPlanner Kind = "planner"
	KindMeal    Kind = "meal"
	KindSleep   Kind = "sleep"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindPlanner, KindMeal, KindSleep}

// ParseKind accepts a kind name case-insensitively.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Record is the single entry for one calendar day. Actions is a set kept in
// the order kinds were first logged.
type Record struct {
	Day     daykey.Key `json:"date"`
	Actions []Kind     `json:"actions"`
}

// Has reports whether kind was logged on the record's day.
func (r Record) Has(kind Kind) bool {
	return slices.Contains(r.Actions, kind)
}

func (r Record) clone() Record {
	return Record{Day: r.Day, Actions: slices.Clone(r.Actions)}
}
