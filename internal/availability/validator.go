// Package availability decides whether a candidate reservation is legal for a resource and
// derives offerable start times from that decision.
package availability

import (
	"errors"
	"fmt"
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"
	"bookable/internal/reservable"
)

// containmentTick is the sampling step used to verify a candidate lies inside open windows.
const containmentTick = 15 * time.Minute

var (
	// ErrInvalidConstraints is returned by New when the resource constraints are unusable.
	ErrInvalidConstraints = errors.New("invalid constraints")
	// ErrInvalidParams is returned by New when the evaluation context is incomplete.
	ErrInvalidParams = errors.New("invalid engine params")
)

// Params is everything the engine evaluates a candidate against.
type Params struct {
	Constraints models.Constraints
	Map         *reservable.Map
	Occupancies []models.Occupancy
	Rounds      []models.RoundPeriod
	Now         time.Time
}

// Engine answers availability questions for one resource at one instant. It never mutates
// its inputs and is safe for concurrent use.
type Engine struct {
	c      models.Constraints
	m      *reservable.Map
	occ    []models.Occupancy
	rounds []models.RoundPeriod
	now    time.Time
	loc    *time.Location
	today  interval.Day
}

// New validates p and returns an Engine over it.
func New(p Params) (*Engine, error) {
	if err := p.Constraints.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstraints, err)
	}
	if p.Now.IsZero() {
		return nil, fmt.Errorf("%w: now is required", ErrInvalidParams)
	}

	m := p.Map
	if m == nil {
		m = reservable.Build(nil, p.Now)
	}
	loc := m.Location()

	occ := make([]models.Occupancy, 0, len(p.Occupancies))
	for _, o := range p.Occupancies {
		if o == nil || !o.Active() {
			continue
		}
		occ = append(occ, o)
	}

	return &Engine{
		c:      p.Constraints,
		m:      m,
		occ:    occ,
		rounds: p.Rounds,
		now:    p.Now.In(loc),
		loc:    loc,
		today:  interval.DayIn(p.Now, loc),
	}, nil
}

// Constraints returns the constraints the engine enforces.
func (e *Engine) Constraints() models.Constraints {
	return e.c
}

// Map returns the reservable map the engine reads.
func (e *Engine) Map() *reservable.Map {
	return e.m
}

// Now returns the instant the engine evaluates against.
func (e *Engine) Now() time.Time {
	return e.now
}

// Today returns the calendar day of Now.
func (e *Engine) Today() interval.Day {
	return e.today
}

// IsRangeReservable reports whether r passes every rule.
func (e *Engine) IsRangeReservable(r interval.Range, skipLengthCheck bool) bool {
	return e.Check(r, skipLengthCheck) == ReasonNone
}

// Check runs the rule pipeline over r and returns the first failure. skipLengthCheck
// disables the duration bounds and tolerates a zero-length range.
func (e *Engine) Check(r interval.Range, skipLengthCheck bool) Reason {
	if !wellFormed(r, skipLengthCheck) {
		return ReasonMalformedRange
	}
	if e.collides(r) {
		return ReasonBufferCollision
	}
	if !e.m.Aligned(r.Start, e.c.Step()) {
		return ReasonStartNotAligned
	}
	if !e.contained(r) {
		return ReasonNotReservable
	}
	if reason := e.checkDayWindow(r.Start); reason != ReasonNone {
		return reason
	}
	if e.inRound(r.Start) {
		return ReasonApplicationRound
	}
	if !skipLengthCheck {
		if reason := e.checkDuration(r.Duration()); reason != ReasonNone {
			return reason
		}
	}
	for _, o := range e.occ {
		if o.Span().Overlaps(r) {
			return ReasonOverlap
		}
	}
	return ReasonNone
}

func wellFormed(r interval.Range, skipLengthCheck bool) bool {
	if r.IsZero() || r.End.Before(r.Start) {
		return false
	}
	return skipLengthCheck || r.Start.Before(r.End)
}

// collides applies the larger of the two facing buffers on each side of every occupancy.
func (e *Engine) collides(r interval.Range) bool {
	own := e.c.Buffers()
	for _, o := range e.occ {
		theirs := o.Buffers()
		padded := r.Extend(
			interval.MaxDuration(own.Before, theirs.After),
			interval.MaxDuration(own.After, theirs.Before),
		)
		if padded.Overlaps(o.Span()) {
			return true
		}
	}
	return false
}

func (e *Engine) contained(r interval.Range) bool {
	for t := r.Start; t.Before(r.End); t = t.Add(containmentTick) {
		if !e.m.Covers(t) {
			return false
		}
	}
	if r.End.After(r.Start) && !e.m.Covers(r.End.Add(-time.Nanosecond)) {
		return false
	}
	return true
}

func (e *Engine) checkDayWindow(start time.Time) Reason {
	if !start.After(e.now) {
		return ReasonInPast
	}
	if start.Before(e.earliestDay().Start(e.loc)) {
		return ReasonTooSoon
	}
	if last, ok := e.latestDay(); ok && interval.DayIn(start, e.loc) > last {
		return ReasonTooFar
	}
	if from := e.c.AvailableFrom; from != nil && start.Before(*from) {
		return ReasonOutsideBookingPeriod
	}
	if until := e.c.AvailableUntil; until != nil && start.After(*until) {
		return ReasonOutsideBookingPeriod
	}
	return ReasonNone
}

func (e *Engine) earliestDay() interval.Day {
	return e.today.AddDays(e.c.MinDaysBefore)
}

func (e *Engine) latestDay() (interval.Day, bool) {
	if !e.c.HasMaxDaysBefore() {
		return 0, false
	}
	return e.today.AddDays(*e.c.MaxDaysBefore), true
}

func (e *Engine) inRound(start time.Time) bool {
	for _, p := range e.rounds {
		if p.Contains(start, e.loc) {
			return true
		}
	}
	return false
}

func (e *Engine) checkDuration(d time.Duration) Reason {
	if e.c.MinDuration > 0 && d < e.c.MinDuration {
		return ReasonTooShort
	}
	if e.c.MaxDuration > 0 && d > e.c.MaxDuration {
		return ReasonTooLong
	}
	return ReasonNone
}
