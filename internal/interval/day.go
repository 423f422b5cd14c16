// Package interval holds the calendar and time-range primitives the availability engine is
// built on. Calendar days are integer ordinals so day arithmetic never touches wall-clock
// offsets.
package interval

import (
	"fmt"
	"strings"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60

	// DayLayout is the textual form of a Day.
	DayLayout = "2006-01-02"
)

// Day is a calendar date counted in days since 1970-01-01.
type Day int

// FromDate returns the ordinal of the given calendar date.
func FromDate(year int, month time.Month, day int) Day {
	// UTC midnight is always an exact multiple of a day, so the division is exact.
	return Day(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// DayOf returns the calendar day of t in its own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return FromDate(y, m, d)
}

// DayIn returns the calendar day of t as seen from loc.
func DayIn(t time.Time, loc *time.Location) Day {
	return DayOf(t.In(loc))
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Date returns the year, month and day of d.
func (d Day) Date() (int, time.Month, int) {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC().Date()
}

// Start returns midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// End returns the last representable instant of d in loc.
func (d Day) End(loc *time.Location) time.Time {
	return (d + 1).Start(loc).Add(-time.Nanosecond)
}

// AddDays moves d by n days.
func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

// Weekday returns the Monday-first weekday of d.
func (d Day) Weekday() Weekday {
	// 1970-01-01 was a Thursday.
	w := (int(d) + int(Thursday)) % 7
	if w < 0 {
		w += 7
	}
	return Weekday(w)
}

func (d Day) String() string {
	y, m, dd := d.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), dd)
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Weekday is a Monday-first day of the week.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// FromTimeWeekday converts Go's Sunday-first weekday.
func FromTimeWeekday(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

// ParseWeekday accepts full or three-letter English names, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Valid reports whether w is one of the seven weekdays.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// MarshalText implements encoding.TextMarshaler.
func (w Weekday) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
