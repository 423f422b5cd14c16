package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"
	"bookable/internal/service"

	"github.com/rs/zerolog"
)

const (
	SummarySheet = "Summary"
	SlotsSheet   = "Slots"
	clockLayout  = "15:04"
)

// ScheduleSource is the part of the availability service the exporter reads.
type ScheduleSource interface {
	Location() *time.Location
	Resource(ctx context.Context, id string) (models.Resource, error)
	Schedule(ctx context.Context, id string, from, to interval.Day, d time.Duration) ([]service.DaySlots, error)
}

// Request selects what to export.
type Request struct {
	Resource string
	From     interval.Day
	To       interval.Day
	Duration time.Duration
}

// Filename returns a name like "sauna_2026-03-02_2026-03-09_60m.xlsx".
func (r Request) Filename() string {
	id := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == ' ' {
			return '_'
		}
		return c
	}, r.Resource)
	return fmt.Sprintf("%s_%s_%s_%dm.xlsx", id, r.From, r.To, int(r.Duration/time.Minute))
}

// Exporter renders resource schedules into workbooks.
type Exporter struct {
	source    ScheduleSource
	newWriter func() SheetWriter
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExporter returns an exporter writing xlsx files.
func NewExporter(source ScheduleSource, logger zerolog.Logger) *Exporter {
	return &Exporter{
		source:    source,
		newWriter: func() SheetWriter { return NewExcelWriter() },
		logger:    logger.With().Str("component", "schedule_export").Logger(),
		now:       time.Now,
	}
}

// Export writes the open slots of req into out. It returns the number of slot rows.
func (e *Exporter) Export(ctx context.Context, req Request, out io.Writer) (int, error) {
	res, err := e.source.Resource(ctx, req.Resource)
	if err != nil {
		return 0, err
	}
	schedule, err := e.source.Schedule(ctx, req.Resource, req.From, req.To, req.Duration)
	if err != nil {
		return 0, err
	}

	w := e.newWriter()
	defer w.Close()

	total := 0
	for _, day := range schedule {
		total += len(day.Slots)
	}

	if err := e.writeSummary(w, res, req, len(schedule), total); err != nil {
		return 0, err
	}
	if err := e.writeSlots(w, schedule, req.Duration); err != nil {
		return 0, err
	}
	if err := w.Save(out); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().
		Str("resource_id", req.Resource).
		Stringer("from", req.From).
		Stringer("to", req.To).
		Int("days", len(schedule)).
		Int("slots", total).
		Msg("schedule exported")
	return total, nil
}

func (e *Exporter) writeSummary(w SheetWriter, res models.Resource, req Request, days, slots int) error {
	if err := w.AddSheet(SummarySheet); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Field", "Value"}); err != nil {
		return err
	}

	name := res.Name
	if name == "" {
		name = res.ID
	}
	rows := [][]any{
		{"Resource", name},
		{"Resource ID", res.ID},
		{"Revision", res.Revision},
		{"From", req.From.String()},
		{"To", req.To.String()},
		{"Duration (minutes)", int(req.Duration / time.Minute)},
		{"Start interval (minutes)", int(res.Constraints.StartInterval)},
		{"Open days", days},
		{"Slots", slots},
		{"Generated at", e.now().In(e.source.Location()).Format(time.RFC3339)},
	}
	for _, row := range rows {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeSlots(w SheetWriter, schedule []service.DaySlots, d time.Duration) error {
	if err := w.AddSheet(SlotsSheet); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Date", "Weekday", "Start", "End"}); err != nil {
		return err
	}

	loc := e.source.Location()
	for _, day := range schedule {
		for _, start := range day.Slots {
			start = start.In(loc)
			row := []any{
				day.Day.String(),
				day.Day.Weekday().String(),
				start.Format(clockLayout),
				start.Add(d).Format(clockLayout),
			}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}
