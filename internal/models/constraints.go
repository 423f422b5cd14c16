package models

import (
	"fmt"
	"time"
)

// StartInterval is the step, in minutes, at which a resource accepts reservation starts.
type StartInterval int

const (
	Interval15Mins  StartInterval = 15
	Interval30Mins  StartInterval = 30
	Interval60Mins  StartInterval = 60
	Interval90Mins  StartInterval = 90
	Interval120Mins StartInterval = 120
)

// Valid reports whether i is one of the supported steps.
func (i StartInterval) Valid() bool {
	switch i {
	case Interval15Mins, Interval30Mins, Interval60Mins, Interval90Mins, Interval120Mins:
		return true
	}
	return false
}

// Duration returns the step as a time.Duration.
func (i StartInterval) Duration() time.Duration {
	return time.Duration(i) * time.Minute
}

func (i StartInterval) String() string {
	return fmt.Sprintf("%dm", int(i))
}

// Constraints are the booking rules of one resource.
type Constraints struct {
	// Zero means unbounded.
	MinDuration time.Duration `yaml:"min_duration" json:"min_duration" validate:"gte=0"`
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration" validate:"gte=0"`

	StartInterval StartInterval `yaml:"start_interval" json:"start_interval" validate:"required,oneof=15 30 60 90 120"`

	BufferBefore time.Duration `yaml:"buffer_before" json:"buffer_before" validate:"gte=0"`
	BufferAfter  time.Duration `yaml:"buffer_after" json:"buffer_after" validate:"gte=0"`

	// MinDaysBefore is the lead time in whole days; 0 allows booking today.
	MinDaysBefore int `yaml:"min_days_before" json:"min_days_before" validate:"gte=0"`
	// MaxDaysBefore caps how far ahead a start may be; nil is unlimited, 0 is today only.
	MaxDaysBefore *int `yaml:"max_days_before" json:"max_days_before,omitempty" validate:"omitempty,gte=0"`

	AvailableFrom  *time.Time `yaml:"available_from" json:"available_from,omitempty"`
	AvailableUntil *time.Time `yaml:"available_until" json:"available_until,omitempty"`
}

// Buffers returns the resource's own turnaround requirement.
func (c Constraints) Buffers() Buffers {
	return Buffers{Before: c.BufferBefore, After: c.BufferAfter}
}

// Step returns the start interval as a duration.
func (c Constraints) Step() time.Duration {
	return c.StartInterval.Duration()
}

// HasMaxDaysBefore reports whether a forward booking limit is set.
func (c Constraints) HasMaxDaysBefore() bool {
	return c.MaxDaysBefore != nil
}

// Validate checks tags and the cross-field rules tags cannot express.
func (c Constraints) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.MinDuration > 0 && c.MaxDuration > 0 && c.MaxDuration < c.MinDuration {
		return fmt.Errorf("%w: max_duration %s is below min_duration %s", ErrInvalid, c.MaxDuration, c.MinDuration)
	}
	if c.AvailableFrom != nil && c.AvailableUntil != nil && c.AvailableUntil.Before(*c.AvailableFrom) {
		return fmt.Errorf("%w: available_until is before available_from", ErrInvalid)
	}
	return nil
}
