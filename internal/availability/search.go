package availability

import (
	"time"

	"bookable/internal/interval"
)

// SearchOptions bound NextAvailableTime.
type SearchOptions struct {
	// HorizonDays stops the search that many days after from. Zero means no extra bound.
	HorizonDays int
}

// NextAvailableTime returns the earliest legal start at or after from for a reservation of
// duration d. Days that cannot contain a legal start are skipped without enumeration.
func (e *Engine) NextAvailableTime(from time.Time, d time.Duration, opts SearchOptions) (time.Time, bool) {
	t, _, ok := e.search(from, d, opts)
	return t, ok
}

// SearchStats reports how much of the map a search touched.
type SearchStats struct {
	DaysScanned int
	DaysSkipped int
}

// NextAvailableTimeStats is NextAvailableTime with scan statistics.
func (e *Engine) NextAvailableTimeStats(from time.Time, d time.Duration, opts SearchOptions) (time.Time, SearchStats, bool) {
	return e.search(from, d, opts)
}

func (e *Engine) search(from time.Time, d time.Duration, opts SearchOptions) (time.Time, SearchStats, bool) {
	var stats SearchStats
	if d <= 0 || from.IsZero() {
		return time.Time{}, stats, false
	}

	fromDay := interval.DayIn(from, e.loc)
	day := max(fromDay, e.today, e.earliestDay())
	if af := e.c.AvailableFrom; af != nil {
		day = max(day, interval.DayIn(*af, e.loc))
	}

	last, ok := e.m.LastDay()
	if !ok {
		return time.Time{}, stats, false
	}
	if limit, ok := e.latestDay(); ok {
		last = min(last, limit)
	}
	if au := e.c.AvailableUntil; au != nil {
		last = min(last, interval.DayIn(*au, e.loc))
	}
	if opts.HorizonDays > 0 {
		last = min(last, fromDay.AddDays(opts.HorizonDays))
	}

	for day <= last {
		next, ok := e.m.NextDay(day)
		if !ok || next > last {
			break
		}
		stats.DaysSkipped += int(next - day)
		day = next

		if end, covered := e.roundCovering(day); covered {
			stats.DaysSkipped += int(end - day + 1)
			day = end + 1
			continue
		}

		stats.DaysScanned++
		for _, start := range e.PossibleTimesForDay(day, d) {
			if !start.Before(from) {
				return start, stats, true
			}
		}
		day++
	}
	return time.Time{}, stats, false
}

// roundCovering returns the last day of a round that blocks the whole of day.
func (e *Engine) roundCovering(day interval.Day) (interval.Day, bool) {
	var end interval.Day
	found := false
	for _, p := range e.rounds {
		if !p.CoversDay(day, e.loc) {
			continue
		}
		if last := p.LastDay(e.loc); !found || last > end {
			end, found = last, true
		}
	}
	return end, found
}
