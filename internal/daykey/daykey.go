// Package daykey maps wall-clock timestamps onto calendar-day keys.
//
// Every per-day merge in the ledger goes through a Key, and every Key that
// originates from a timestamp goes through a Policy, so the timezone the
// service counts days in is decided in exactly one place.
package daykey

import (
	"errors"
	"fmt"
	"time"
)

const layout = "2006-01-02"

// ErrInvalidKey is returned when a string is not a canonical YYYY-MM-DD day.
var ErrInvalidKey = errors.New("invalid day key")

// Key is a canonical calendar day in YYYY-MM-DD form.
type Key string

// Parse validates a YYYY-MM-DD string. Non-canonical spellings such as
// "2024-5-1" are rejected so two keys for the same day always compare equal.
func Parse(raw string) (Key, error) {
	t, err := time.Parse(layout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	if t.Format(layout) != raw {
		return "", fmt.Errorf("%w: %q is not canonical", ErrInvalidKey, raw)
	}
	return Key(raw), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(raw string) Key {
	k, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return k
}

// FromDate builds a key from calendar components, normalising overflow the way time.Date does.
func FromDate(year int, month time.Month, day int) Key {
	return Key(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(layout))
}

func (k Key) String() string { return string(k) }

// Valid reports whether k is canonical.
func (k Key) Valid() bool {
	_, err := Parse(string(k))
	return err == nil
}

// Date returns midnight UTC of the day. Day arithmetic is done in UTC so DST
// transitions in the policy location cannot skip or repeat a day.
func (k Key) Date() (time.Time, bool) {
	t, err := time.Parse(layout, string(k))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AddDays shifts the key by n calendar days. An invalid key yields "".
func (k Key) AddDays(n int) Key {
	t, ok := k.Date()
	if !ok {
		return ""
	}
	return Key(t.AddDate(0, 0, n).Format(layout))
}

// Before reports whether k is an earlier day than other.
func (k Key) Before(other Key) bool {
	// Canonical keys sort lexicographically in calendar order.
	return k < other
}

// Month returns the month the day belongs to.
func (k Key) Month() Month {
	t, ok := k.Date()
	if !ok {
		return Month{}
	}
	return Month{Year: t.Year(), Month: t.Month()}
}

// DayOfMonth returns 1..31, or 0 for an invalid key.
func (k Key) DayOfMonth() int {
	t, ok := k.Date()
	if !ok {
		return 0
	}
	return t.Day()
}

// Policy fixes the location used to turn timestamps into keys.
type Policy struct {
	loc *time.Location
}

// NewPolicy returns a Policy for loc; nil means UTC.
func NewPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{loc: loc}
}

// LoadPolicy resolves an IANA zone name ("UTC", "Local", "Europe/Berlin").
func LoadPolicy(name string) (Policy, error) {
	if name == "" {
		return NewPolicy(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Policy{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewPolicy(loc), nil
}

// Location returns the policy location.
func (p Policy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// FromTime returns the calendar day t falls on in the policy location.
func (p Policy) FromTime(t time.Time) Key {
	return Key(t.In(p.Location()).Format(layout))
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses YYYY-MM.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", raw, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns the key for day d of the month.
func (m Month) Day(d int) Key {
	return FromDate(m.Year, m.Month, d)
}
