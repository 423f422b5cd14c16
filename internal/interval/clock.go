package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes after midnight. 24:00 is allowed as an end time.
type Clock int

const maxClock = Clock(24 * 60)

// NewClock builds a Clock from hours and minutes.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time: %s", s)
	}
	c := NewClock(hour, minute)
	if c > maxClock {
		return 0, fmt.Errorf("invalid time: %s", s)
	}
	return c, nil
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Valid reports whether c is within 00:00..24:00.
func (c Clock) Valid() bool {
	return c >= 0 && c <= maxClock
}

// On returns the instant of c on day d in loc.
func (c Clock) On(d Day, loc *time.Location) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
