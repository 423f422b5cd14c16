// Package recurring turns a weekly or biweekly booking pattern into concrete dates. It never
// checks availability; each occurrence has to be validated on its own.
package recurring

import (
	"fmt"
	"slices"
	"time"

	"bookable/internal/interval"
)

// Cadence is how often a pattern repeats.
type Cadence string

const (
	Weekly   Cadence = "weekly"
	Biweekly Cadence = "biweekly"
)

// StepDays returns the stride between repetitions, or 0 for an unknown cadence.
func (c Cadence) StepDays() int {
	switch c {
	case Weekly, "":
		return 7
	case Biweekly:
		return 14
	}
	return 0
}

// Pattern describes a recurring reservation.
type Pattern struct {
	StartDate interval.Day       `json:"start_date" yaml:"start_date"`
	EndDate   interval.Day       `json:"end_date" yaml:"end_date"`
	StartTime interval.Clock     `json:"start_time" yaml:"start_time"`
	EndTime   interval.Clock     `json:"end_time" yaml:"end_time"`
	Weekdays  []interval.Weekday `json:"weekdays" yaml:"weekdays"`
	Cadence   Cadence            `json:"cadence" yaml:"cadence"`
}

// Occurrence is one concrete instance of a pattern.
type Occurrence struct {
	Date      interval.Day   `json:"date"`
	StartTime interval.Clock `json:"start_time"`
	EndTime   interval.Clock `json:"end_time"`
}

// Range returns the occurrence as absolute times in loc.
func (o Occurrence) Range(loc *time.Location) interval.Range {
	return interval.Range{Start: o.StartTime.On(o.Date, loc), End: o.EndTime.On(o.Date, loc)}
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%s %s-%s", o.Date, o.StartTime, o.EndTime)
}

// Expand lists the occurrences of p from today onwards in chronological order. Degenerate
// patterns produce no occurrences.
func Expand(p Pattern, today interval.Day) []Occurrence {
	if !p.StartTime.Valid() || !p.EndTime.Valid() || p.EndTime <= p.StartTime {
		return nil
	}

	days := Days(max(p.StartDate, today), p.EndDate, p.Cadence.StepDays(), p.Weekdays)
	if len(days) == 0 {
		return nil
	}

	out := make([]Occurrence, len(days))
	for i, d := range days {
		out[i] = Occurrence{Date: d, StartTime: p.StartTime, EndTime: p.EndTime}
	}
	return out
}

// Days returns every day in [start, end] that falls on one of weekdays, repeating the first
// week's matches every stepDays days. The result is sorted.
func Days(start, end interval.Day, stepDays int, weekdays []interval.Weekday) []interval.Day {
	if stepDays < 1 || end < start || len(weekdays) == 0 {
		return nil
	}

	var wanted [7]bool
	for _, w := range weekdays {
		if w.Valid() {
			wanted[w] = true
		}
	}

	var out []interval.Day
	for first := start; first < start.AddDays(7) && first <= end; first++ {
		if !wanted[first.Weekday()] {
			continue
		}
		for d := first; d <= end; d = d.AddDays(stepDays) {
			out = append(out, d)
		}
	}

	slices.Sort(out)
	return out
}
