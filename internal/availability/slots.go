package availability

import (
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"
)

// maxOpenDuration caps duration options for resources without a maximum.
const maxOpenDuration = 24 * time.Hour

// PossibleTimesForDay returns every start on day at which a reservation of duration d is
// legal, in ascending order.
func (e *Engine) PossibleTimesForDay(day interval.Day, d time.Duration) []time.Time {
	if d <= 0 {
		return nil
	}

	var out []time.Time
	for _, start := range e.m.Starts(day, e.c.Step()) {
		if e.Check(interval.NewRange(start, d), false) == ReasonNone {
			out = append(out, start)
		}
	}
	return out
}

// OpenDays returns the days in [from, to] with at least one legal start for duration d.
func (e *Engine) OpenDays(from, to interval.Day, d time.Duration) []interval.Day {
	if d <= 0 || to < from {
		return nil
	}
	if from < e.today {
		from = e.today
	}

	var out []interval.Day
	for day, ok := e.m.NextDay(from); ok && day <= to; day, ok = e.m.NextDay(day + 1) {
		if len(e.PossibleTimesForDay(day, d)) > 0 {
			out = append(out, day)
		}
	}
	return out
}

// DurationOptions lists the reservation lengths c allows, one start interval apart.
func DurationOptions(c models.Constraints) []time.Duration {
	step := c.Step()
	if step <= 0 {
		return nil
	}

	lo := c.MinDuration
	if lo <= 0 {
		lo = step
	}
	hi := c.MaxDuration
	if hi <= 0 {
		hi = maxOpenDuration
	}

	var out []time.Duration
	for d := lo; d <= hi; d += step {
		out = append(out, d)
	}
	return out
}
