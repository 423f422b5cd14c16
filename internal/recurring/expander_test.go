package recurring

import (
	"encoding/json"
	"testing"
	"time"

	"bookable/internal/interval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(month time.Month, day int) interval.Day {
	return interval.FromDate(2026, month, day)
}

func TestExpand(t *testing.T) {
	monday := date(3, 2)
	base := Pattern{
		StartDate: monday,
		EndDate:   date(3, 29),
		StartTime: interval.NewClock(18, 0),
		EndTime:   interval.NewClock(19, 30),
		Weekdays:  []interval.Weekday{interval.Wednesday, interval.Monday},
		Cadence:   Weekly,
	}

	tests := []struct {
		name   string
		mutate func(p *Pattern)
		today  interval.Day
		want   []interval.Day
	}{
		{
			name:  "weekly monday and wednesday over four weeks",
			today: monday,
			want: []interval.Day{
				date(3, 2), date(3, 4), date(3, 9), date(3, 11),
				date(3, 16), date(3, 18), date(3, 23), date(3, 25),
			},
		},
		{
			name:   "biweekly",
			mutate: func(p *Pattern) { p.Cadence = Biweekly },
			today:  monday,
			want:   []interval.Day{date(3, 2), date(3, 4), date(3, 16), date(3, 18)},
		},
		{
			name:  "start clamped to today",
			today: date(3, 19),
			want:  []interval.Day{date(3, 23), date(3, 25)},
		},
		{
			name:   "start mid-week",
			mutate: func(p *Pattern) { p.StartDate = date(3, 4) },
			today:  monday,
			want: []interval.Day{
				date(3, 4), date(3, 9), date(3, 11), date(3, 16),
				date(3, 18), date(3, 23), date(3, 25),
			},
		},
		{
			name:   "end date is inclusive",
			mutate: func(p *Pattern) { p.EndDate = date(3, 9) },
			today:  monday,
			want:   []interval.Day{date(3, 2), date(3, 4), date(3, 9)},
		},
		{
			name:   "inverted dates",
			mutate: func(p *Pattern) { p.EndDate = date(3, 1) },
			today:  monday,
		},
		{
			name:   "no weekdays",
			mutate: func(p *Pattern) { p.Weekdays = nil },
			today:  monday,
		},
		{
			name:   "end time before start time",
			mutate: func(p *Pattern) { p.EndTime = interval.NewClock(17, 0) },
			today:  monday,
		},
		{
			name:   "unknown cadence",
			mutate: func(p *Pattern) { p.Cadence = "monthly" },
			today:  monday,
		},
		{
			name:  "pattern already over",
			today: date(4, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.Weekdays = append([]interval.Weekday(nil), base.Weekdays...)
			if tt.mutate != nil {
				tt.mutate(&p)
			}

			got := Expand(p, tt.today)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}

			days := make([]interval.Day, len(got))
			for i, o := range got {
				days[i] = o.Date
				assert.Equal(t, p.StartTime, o.StartTime)
				assert.Equal(t, p.EndTime, o.EndTime)
			}
			assert.Equal(t, tt.want, days)
		})
	}
}

func TestExpand_Deterministic(t *testing.T) {
	p := Pattern{
		StartDate: date(3, 1),
		EndDate:   date(12, 31),
		StartTime: interval.NewClock(9, 0),
		EndTime:   interval.NewClock(10, 0),
		Weekdays:  []interval.Weekday{interval.Sunday, interval.Friday, interval.Tuesday},
		Cadence:   Biweekly,
	}

	first := Expand(p, date(3, 1))
	require.NotEmpty(t, first)
	assert.Equal(t, first, Expand(p, date(3, 1)))

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Date, first[i].Date)
	}
}

func TestExpand_AcrossDaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Skip("tzdata not available")
	}

	p := Pattern{
		StartDate: date(3, 23),
		EndDate:   date(4, 6),
		StartTime: interval.NewClock(9, 0),
		EndTime:   interval.NewClock(10, 0),
		Weekdays:  []interval.Weekday{interval.Monday},
	}

	got := Expand(p, date(3, 1))
	require.Len(t, got, 3)
	for _, o := range got {
		r := o.Range(loc)
		assert.Equal(t, 9, r.Start.Hour())
		assert.Equal(t, time.Monday, r.Start.Weekday())
		assert.Equal(t, time.Hour, r.Duration())
	}
}

func TestDays(t *testing.T) {
	assert.Empty(t, Days(date(3, 2), date(3, 30), 0, []interval.Weekday{interval.Monday}))
	assert.Empty(t, Days(date(3, 30), date(3, 2), 7, []interval.Weekday{interval.Monday}))

	got := Days(date(3, 2), date(3, 8), 1, []interval.Weekday{interval.Saturday})
	assert.Equal(t, []interval.Day{date(3, 7), date(3, 8)}, got)
}

func TestPattern_JSON(t *testing.T) {
	raw := `{
		"start_date": "2026-03-02",
		"end_date": "2026-03-15",
		"start_time": "18:00",
		"end_time": "19:00",
		"weekdays": ["mon", "thursday"],
		"cadence": "weekly"
	}`

	var p Pattern
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, date(3, 2), p.StartDate)
	assert.Equal(t, interval.NewClock(18, 0), p.StartTime)
	assert.Equal(t, []interval.Weekday{interval.Monday, interval.Thursday}, p.Weekdays)

	got := Expand(p, date(3, 1))
	require.Len(t, got, 4)
	assert.Equal(t, "2026-03-05 18:00-19:00", got[1].String())
}
