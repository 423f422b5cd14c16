package interval

import (
	"fmt"
	"time"
)

// Range is a time range. Overlap tests treat it as half-open [Start, End).
type Range struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewRange builds a Range starting at start and lasting d.
func NewRange(start time.Time, d time.Duration) Range {
	return Range{Start: start, End: start.Add(d)}
}

// IsZero reports whether either endpoint is unset.
func (r Range) IsZero() bool {
	return r.Start.IsZero() || r.End.IsZero()
}

// Valid reports whether both endpoints are set and Start is strictly before End.
func (r Range) Valid() bool {
	return !r.IsZero() && r.Start.Before(r.End)
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether r and o share any instant. Touching ranges do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether t lies in the closed range [Start, End].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Extend widens r by before and after on each side.
func (r Range) Extend(before, after time.Duration) Range {
	return Range{Start: r.Start.Add(-before), End: r.End.Add(after)}
}

// Clamp intersects r with bounds. The result may be invalid when they do not intersect.
func (r Range) Clamp(bounds Range) Range {
	out := r
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Enumerate returns Start, Start+step, ... while strictly before End.
func Enumerate(r Range, step time.Duration) []time.Time {
	if step <= 0 || !r.Valid() {
		return nil
	}
	out := make([]time.Time, 0, int(r.Duration()/step)+1)
	for t := r.Start; t.Before(r.End); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

// AlignUp returns the first instant at or after t on the grid anchor + k*step.
func AlignUp(t, anchor time.Time, step time.Duration) time.Time {
	if step <= 0 || !t.After(anchor) {
		return anchor
	}
	k := t.Sub(anchor) / step
	aligned := anchor.Add(k * step)
	if aligned.Before(t) {
		aligned = aligned.Add(step)
	}
	return aligned
}

// OnGrid reports whether t equals anchor + k*step for some k >= 0.
func OnGrid(t, anchor time.Time, step time.Duration) bool {
	if step <= 0 || t.Before(anchor) {
		return false
	}
	return t.Sub(anchor)%step == 0
}

// MaxDuration returns the larger of a and b.
func MaxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
