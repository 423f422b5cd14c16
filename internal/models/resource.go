package models

import (
	"fmt"
	"time"

	"bookable/internal/interval"
)

// Span is a raw availability span as supplied by the upstream calendar.
type Span struct {
	Start time.Time `yaml:"start" json:"start" validate:"required"`
	End   time.Time `yaml:"end" json:"end" validate:"required"`
}

// Range returns s as an interval.Range.
func (s Span) Range() interval.Range {
	return interval.Range{Start: s.Start, End: s.End}
}

// RoundPeriod is an active application round. Starts inside it cannot be booked directly.
type RoundPeriod struct {
	Start time.Time `yaml:"start" json:"start" validate:"required"`
	End   time.Time `yaml:"end" json:"end" validate:"required"`
}

// LastDay returns the day the round ends on, as seen from loc.
func (p RoundPeriod) LastDay(loc *time.Location) interval.Day {
	return interval.DayIn(p.End, loc)
}

// Contains reports whether t is in [Start, end of the End day].
func (p RoundPeriod) Contains(t time.Time, loc *time.Location) bool {
	if t.Before(p.Start) {
		return false
	}
	return !t.After(p.LastDay(loc).End(loc))
}

// CoversDay reports whether every instant of d is inside the round.
func (p RoundPeriod) CoversDay(d interval.Day, loc *time.Location) bool {
	return !p.Start.After(d.Start(loc)) && d <= p.LastDay(loc)
}

// OpeningHours is a weekly schedule the shell turns into spans on each query.
type OpeningHours struct {
	Weekdays []interval.Weekday `yaml:"weekdays" json:"weekdays" validate:"required,min=1"`
	Open     interval.Clock     `yaml:"open" json:"open"`
	Close    interval.Clock     `yaml:"close" json:"close" validate:"gtfield=Open"`
	// HorizonDays is how far ahead spans are generated; zero uses the engine search horizon.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" validate:"gte=0"`
}

// Resource is one bookable unit together with everything needed to evaluate it.
type Resource struct {
	ID           string                `yaml:"id" json:"id" validate:"required"`
	Name         string                `yaml:"name" json:"name"`
	Revision     string                `yaml:"-" json:"revision"`
	Constraints  Constraints           `yaml:"constraints" json:"constraints"`
	Hours        *OpeningHours         `yaml:"opening_hours" json:"opening_hours,omitempty"`
	Spans        []Span                `yaml:"spans" json:"spans" validate:"dive"`
	Reservations []BlockingReservation `yaml:"reservations" json:"reservations" validate:"dive"`
	Rounds       []RoundPeriod         `yaml:"rounds" json:"rounds" validate:"dive"`
}

// Validate checks the resource and its constraints.
func (r *Resource) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if err := r.Constraints.Validate(); err != nil {
		return fmt.Errorf("resource %s: %w", r.ID, err)
	}
	return nil
}

// Occupancies returns the resource's active reservations in tagged form.
func (r *Resource) Occupancies() []Occupancy {
	return Occupancies(r.Reservations)
}
