// Package reservable builds the per-day index of open windows the availability engine
// evaluates candidates against.
package reservable

import (
	"slices"
	"sort"
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"
)

// Window is an open range inside a single calendar day. End is exclusive and may be the
// following midnight.
type Window struct {
	Start time.Time
	End   time.Time
	// Anchor is the origin of the window's start-time grid. It differs from Start when the
	// window was clamped to "now".
	Anchor time.Time
}

// Range returns the window as a half-open range.
func (w Window) Range() interval.Range {
	return interval.Range{Start: w.Start, End: w.End}
}

// Map indexes open windows by day. It is immutable once built and safe for concurrent reads.
type Map struct {
	loc     *time.Location
	days    []interval.Day
	windows map[interval.Day][]Window
}

// Build normalizes raw spans into a Map. Spans are clipped to the future relative to now,
// split per calendar day and appended in arrival order. Calendar days are those of
// now.Location().
func Build(spans []models.Span, now time.Time) *Map {
	loc := now.Location()
	m := &Map{
		loc:     loc,
		windows: make(map[interval.Day][]Window),
	}

	for _, span := range spans {
		if span.Start.IsZero() || span.End.IsZero() || !span.End.After(span.Start) {
			continue
		}
		if !span.End.After(now) {
			continue
		}

		start := span.Start.In(loc)
		end := span.End.In(loc)
		firstDay := interval.DayOf(start)
		if start.Before(now) {
			start = now.In(loc)
		}
		// The end is exclusive, so a span ending on midnight belongs to the previous day only.
		lastDay := interval.DayOf(end.Add(-time.Nanosecond))

		for d := interval.DayOf(start); d <= lastDay; d++ {
			dayStart, dayEnd := d.Start(loc), (d + 1).Start(loc)

			w := Window{Start: start, End: end, Anchor: span.Start.In(loc)}
			if w.Start.Before(dayStart) {
				w.Start = dayStart
			}
			if w.End.After(dayEnd) {
				w.End = dayEnd
			}
			if d != firstDay {
				w.Anchor = dayStart
			}
			if !w.End.After(w.Start) {
				continue
			}
			m.add(d, w)
		}
	}

	sort.Slice(m.days, func(i, j int) bool { return m.days[i] < m.days[j] })
	return m
}

func (m *Map) add(d interval.Day, w Window) {
	if _, ok := m.windows[d]; !ok {
		m.days = append(m.days, d)
	}
	m.windows[d] = append(m.windows[d], w)
}

// Location returns the location calendar days are computed in.
func (m *Map) Location() *time.Location {
	return m.loc
}

// Len returns the number of days with at least one window.
func (m *Map) Len() int {
	return len(m.days)
}

// Days returns the indexed days in ascending order.
func (m *Map) Days() []interval.Day {
	return slices.Clone(m.days)
}

// Windows returns a copy of the windows of d in arrival order.
func (m *Map) Windows(d interval.Day) []Window {
	return slices.Clone(m.windows[d])
}

// Has reports whether d has any window.
func (m *Map) Has(d interval.Day) bool {
	_, ok := m.windows[d]
	return ok
}

// NextDay returns the first indexed day at or after d.
func (m *Map) NextDay(d interval.Day) (interval.Day, bool) {
	i := sort.Search(len(m.days), func(i int) bool { return m.days[i] >= d })
	if i == len(m.days) {
		return 0, false
	}
	return m.days[i], true
}

// LastDay returns the last indexed day.
func (m *Map) LastDay() (interval.Day, bool) {
	if len(m.days) == 0 {
		return 0, false
	}
	return m.days[len(m.days)-1], true
}

// Bounds returns the bounding box of d's windows. Gaps between windows are included.
func (m *Map) Bounds(d interval.Day) (interval.Range, bool) {
	ws := m.windows[d]
	if len(ws) == 0 {
		return interval.Range{}, false
	}
	box := ws[0].Range()
	for _, w := range ws[1:] {
		if w.Start.Before(box.Start) {
			box.Start = w.Start
		}
		if w.End.After(box.End) {
			box.End = w.End
		}
	}
	return box, true
}

// Covers reports whether t lies inside some window of its own day.
func (m *Map) Covers(t time.Time) bool {
	for _, w := range m.windows[interval.DayIn(t, m.loc)] {
		if !t.Before(w.Start) && t.Before(w.End) {
			return true
		}
	}
	return false
}

// anchor returns the origin of d's start-time grid: the start of the day's bounding box,
// taken before any clamping to "now".
func (m *Map) anchor(d interval.Day) (time.Time, bool) {
	ws := m.windows[d]
	if len(ws) == 0 {
		return time.Time{}, false
	}
	a := ws[0].Anchor
	for _, w := range ws[1:] {
		if w.Anchor.Before(a) {
			a = w.Anchor
		}
	}
	return a, true
}

// Aligned reports whether t lies in a window of its day and on the day's grid at step.
func (m *Map) Aligned(t time.Time, step time.Duration) bool {
	d := interval.DayIn(t, m.loc)
	anchor, ok := m.anchor(d)
	if !ok || !interval.OnGrid(t, anchor, step) {
		return false
	}
	for _, w := range m.windows[d] {
		if !t.Before(w.Start) && t.Before(w.End) {
			return true
		}
	}
	return false
}

// Starts returns the offsets of d's grid at step that fall inside a window, sorted and
// deduplicated. The grid spans the day's bounding box, so gaps only drop offsets.
func (m *Map) Starts(d interval.Day, step time.Duration) []time.Time {
	ws := m.windows[d]
	anchor, ok := m.anchor(d)
	if !ok || step <= 0 {
		return nil
	}

	var out []time.Time
	for _, w := range ws {
		first := interval.AlignUp(w.Start, anchor, step)
		out = append(out, interval.Enumerate(interval.Range{Start: first, End: w.End}, step)...)
	}
	if len(ws) == 1 {
		return out
	}

	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}
