package service

import (
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"
	"bookable/internal/recurring"
)

// hoursSpans turns weekly opening hours into one span per open day, starting at today.
func hoursSpans(h models.OpeningHours, today interval.Day, defaultHorizon int, loc *time.Location) []models.Span {
	horizon := h.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizon
	}

	days := recurring.Days(today, today.AddDays(horizon), 7, h.Weekdays)
	spans := make([]models.Span, len(days))
	for i, d := range days {
		spans[i] = models.Span{Start: h.Open.On(d, loc), End: h.Close.On(d, loc)}
	}
	return spans
}
