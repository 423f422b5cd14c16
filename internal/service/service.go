package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookable/internal/availability"
	"bookable/internal/interval"
	"bookable/internal/metrics"
	"bookable/internal/models"
	"bookable/internal/recurring"
	"bookable/internal/reservable"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrNotLoaded        = errors.New("resources not loaded")
	ErrInvalidInput     = errors.New("invalid input")
)

// maxRangeDays caps day-range queries.
const maxRangeDays = 366

type ctxKey struct{}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Options configure a Service.
type Options struct {
	Location          *time.Location
	SearchHorizonDays int
	Now               func() time.Time
}

// Service answers availability questions for the resources of a ResourceSource.
type Service struct {
	source  ResourceSource
	cache   *SlotCache
	metrics *metrics.Metrics
	logger  zerolog.Logger

	loc     *time.Location
	horizon int
	now     func() time.Time
}

// New builds a Service. cache and m may be nil.
func New(source ResourceSource, cache *SlotCache, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SearchHorizonDays <= 0 {
		opts.SearchHorizonDays = 730
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:  source,
		cache:   cache,
		metrics: m,
		logger:  logger.With().Str("component", "availability_service").Logger(),
		loc:     opts.Location,
		horizon: opts.SearchHorizonDays,
		now:     opts.Now,
	}
}

// Location returns the timezone calendar days are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Resources lists every known resource.
func (s *Service) Resources(ctx context.Context) ([]models.Resource, error) {
	return s.source.Resources(ctx)
}

// Resource returns one resource.
func (s *Service) Resource(ctx context.Context, id string) (models.Resource, error) {
	return s.source.Resource(ctx, id)
}

// CheckResult is the outcome of validating one candidate.
type CheckResult struct {
	Reservable bool                `json:"reservable"`
	Reason     availability.Reason `json:"reason"`
}

// Check validates a candidate range for a resource.
func (s *Service) Check(ctx context.Context, id string, r interval.Range, skipLengthCheck bool) (CheckResult, error) {
	started := time.Now()
	e, _, err := s.engine(ctx, id)
	if err != nil {
		return CheckResult{}, err
	}

	reason := e.Check(r, skipLengthCheck)
	s.observe("check", started)
	if s.metrics != nil {
		s.metrics.IncCheck(reason.String())
	}

	log := s.log(ctx, id)
	if reason.OK() {
		log.Debug().Stringer("range", r).Msg("candidate accepted")
	} else {
		log.Debug().Stringer("range", r).Stringer("reason", reason).Msg("candidate rejected")
	}
	return CheckResult{Reservable: reason.OK(), Reason: reason}, nil
}

// Slots returns the legal start times on day for a reservation of duration d.
func (s *Service) Slots(ctx context.Context, id string, day interval.Day, d time.Duration) ([]time.Time, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	started := time.Now()

	res, err := s.source.Resource(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := SlotKey{Resource: id, Revision: res.Revision, Day: day, Duration: d, At: now}
	log := s.log(ctx, id)

	if s.cache.Enabled() {
		cached, ok, err := s.cache.Get(ctx, key, s.loc)
		switch {
		case err != nil:
			s.countCache("error")
			log.Warn().Err(err).Msg("slot cache read failed")
		case ok:
			s.countCache("hit")
			return cached, nil
		default:
			s.countCache("miss")
		}
	}

	e, err := s.build(res, now)
	if err != nil {
		return nil, err
	}
	slots := e.PossibleTimesForDay(day, d)
	s.observe("slots", started)

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, slots); err != nil {
			log.Warn().Err(err).Msg("slot cache write failed")
		}
	}

	log.Debug().Stringer("day", day).Dur("duration", d).Int("slots", len(slots)).Msg("slots enumerated")
	return slots, nil
}

// NextAvailable finds the earliest legal start at or after from.
func (s *Service) NextAvailable(ctx context.Context, id string, from time.Time, d time.Duration) (time.Time, bool, error) {
	if d <= 0 {
		return time.Time{}, false, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if from.IsZero() {
		from = s.now()
	}
	started := time.Now()

	e, _, err := s.engine(ctx, id)
	if err != nil {
		return time.Time{}, false, err
	}

	start, stats, ok := e.NextAvailableTimeStats(from, d, availability.SearchOptions{HorizonDays: s.horizon})
	elapsed := time.Since(started)
	s.observe("next", started)
	if s.metrics != nil {
		s.metrics.ObserveSearch(stats.DaysScanned)
	}

	s.log(ctx, id).Debug().
		Bool("found", ok).
		Time("start", start).
		Int("days_scanned", stats.DaysScanned).
		Int("days_skipped", stats.DaysSkipped).
		Dur("elapsed", elapsed).
		Msg("next available search")
	return start, ok, nil
}

// OpenDays returns the days in [from, to] with at least one legal start.
func (s *Service) OpenDays(ctx context.Context, id string, from, to interval.Day, d time.Duration) ([]interval.Day, error) {
	if err := checkDayRange(from, to, d); err != nil {
		return nil, err
	}
	started := time.Now()

	e, _, err := s.engine(ctx, id)
	if err != nil {
		return nil, err
	}
	days := e.OpenDays(from, to, d)
	s.observe("days", started)
	return days, nil
}

// DaySlots is the slot list of one day.
type DaySlots struct {
	Day   interval.Day
	Slots []time.Time
}

// Schedule returns the slots of every open day in [from, to].
func (s *Service) Schedule(ctx context.Context, id string, from, to interval.Day, d time.Duration) ([]DaySlots, error) {
	if err := checkDayRange(from, to, d); err != nil {
		return nil, err
	}
	started := time.Now()

	e, _, err := s.engine(ctx, id)
	if err != nil {
		return nil, err
	}
	if from < e.Today() {
		from = e.Today()
	}

	out := make([]DaySlots, 0)
	m := e.Map()
	for day, ok := m.NextDay(from); ok && day <= to; day, ok = m.NextDay(day + 1) {
		if slots := e.PossibleTimesForDay(day, d); len(slots) > 0 {
			out = append(out, DaySlots{Day: day, Slots: slots})
		}
	}
	s.observe("schedule", started)
	return out, nil
}

func checkDayRange(from, to interval.Day, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if to < from {
		return fmt.Errorf("%w: range end before start", ErrInvalidInput)
	}
	if int(to-from) >= maxRangeDays {
		return fmt.Errorf("%w: range longer than %d days", ErrInvalidInput, maxRangeDays)
	}
	return nil
}

// Durations lists the reservation lengths a resource allows.
func (s *Service) Durations(ctx context.Context, id string) ([]time.Duration, error) {
	res, err := s.source.Resource(ctx, id)
	if err != nil {
		return nil, err
	}
	return availability.DurationOptions(res.Constraints), nil
}

// RecurringResult is one expanded occurrence with its validation outcome.
type RecurringResult struct {
	Occurrence recurring.Occurrence `json:"occurrence"`
	Range      interval.Range       `json:"range"`
	Reservable bool                 `json:"reservable"`
	Reason     availability.Reason  `json:"reason"`
}

// Recurring expands p and validates every occurrence against the resource.
func (s *Service) Recurring(ctx context.Context, id string, p recurring.Pattern) ([]RecurringResult, error) {
	started := time.Now()
	e, _, err := s.engine(ctx, id)
	if err != nil {
		return nil, err
	}

	occurrences := recurring.Expand(p, e.Today())
	out := make([]RecurringResult, len(occurrences))
	accepted := 0
	for i, o := range occurrences {
		r := o.Range(s.loc)
		reason := e.Check(r, false)
		if reason.OK() {
			accepted++
		}
		out[i] = RecurringResult{Occurrence: o, Range: r, Reservable: reason.OK(), Reason: reason}
	}
	s.observe("recurring", started)

	s.log(ctx, id).Debug().
		Int("occurrences", len(out)).
		Int("reservable", accepted).
		Msg("recurring pattern expanded")
	return out, nil
}

func (s *Service) engine(ctx context.Context, id string) (*availability.Engine, models.Resource, error) {
	res, err := s.source.Resource(ctx, id)
	if err != nil {
		return nil, models.Resource{}, err
	}
	e, err := s.build(res, s.now())
	if err != nil {
		return nil, models.Resource{}, err
	}
	return e, res, nil
}

func (s *Service) build(res models.Resource, now time.Time) (*availability.Engine, error) {
	now = now.In(s.loc)
	spans := res.Spans
	if res.Hours != nil {
		spans = append(hoursSpans(*res.Hours, interval.DayOf(now), s.horizon, s.loc), spans...)
	}

	e, err := availability.New(availability.Params{
		Constraints: res.Constraints,
		Map:         reservable.Build(spans, now),
		Occupancies: res.Occupancies(),
		Rounds:      res.Rounds,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", res.ID, err)
	}
	return e, nil
}

func (s *Service) log(ctx context.Context, id string) *zerolog.Logger {
	l := s.logger.With().Str("request_id", RequestID(ctx)).Str("resource_id", id).Logger()
	return &l
}

func (s *Service) observe(operation string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveQuery(operation, time.Since(started).Seconds())
	}
}

func (s *Service) countCache(result string) {
	if s.metrics != nil {
		s.metrics.IncCache(result)
	}
}
