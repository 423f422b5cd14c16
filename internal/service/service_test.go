package service

import (
	"context"
	"testing"
	"time"

	"bookable/internal/availability"
	"bookable/internal/config"
	"bookable/internal/interval"
	"bookable/internal/metrics"
	"bookable/internal/models"
	"bookable/internal/recurring"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Monday 2026-03-02 08:00 UTC.
var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(offset, hour, min int) time.Time {
	return interval.DayOf(now).AddDays(offset).Start(time.UTC).
		Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Resource(ctx context.Context, id string) (models.Resource, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Resource), args.Error(1)
}

func (m *mockSource) Resources(ctx context.Context) ([]models.Resource, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Resource), args.Error(1)
}

func sauna() models.Resource {
	return models.Resource{
		ID:       "sauna",
		Revision: "rev-1",
		Constraints: models.Constraints{
			MinDuration:   time.Hour,
			MaxDuration:   3 * time.Hour,
			StartInterval: models.Interval60Mins,
		},
		Hours: &models.OpeningHours{
			Weekdays:    []interval.Weekday{interval.Monday, interval.Tuesday, interval.Wednesday},
			Open:        interval.NewClock(16, 0),
			Close:       interval.NewClock(20, 0),
			HorizonDays: 30,
		},
		Reservations: []models.BlockingReservation{
			{Start: at(1, 17, 0), End: at(1, 18, 0), State: models.StateConfirmed},
		},
	}
}

func newService(t *testing.T, source ResourceSource, cache *SlotCache, m *metrics.Metrics) *Service {
	t.Helper()
	return New(source, cache, m, zerolog.Nop(), Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func TestService_Check(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	src.On("Resource", mock.Anything, "gym").Return(models.Resource{}, ErrResourceNotFound)

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	svc := newService(t, src, nil, m)
	ctx := WithRequestID(context.Background(), "req-1")

	res, err := svc.Check(ctx, "sauna", interval.Range{Start: at(0, 16, 0), End: at(0, 18, 0)}, false)
	require.NoError(t, err)
	assert.True(t, res.Reservable)
	assert.Equal(t, availability.ReasonNone, res.Reason)

	res, err = svc.Check(ctx, "sauna", interval.Range{Start: at(1, 16, 0), End: at(1, 18, 0)}, false)
	require.NoError(t, err)
	assert.False(t, res.Reservable)
	assert.Equal(t, availability.ReasonBufferCollision, res.Reason)

	// Thursday is closed.
	res, err = svc.Check(ctx, "sauna", interval.Range{Start: at(3, 16, 0), End: at(3, 17, 0)}, false)
	require.NoError(t, err)
	assert.Equal(t, availability.ReasonStartNotAligned, res.Reason)

	_, err = svc.Check(ctx, "gym", interval.Range{Start: at(0, 16, 0), End: at(0, 17, 0)}, false)
	assert.ErrorIs(t, err, ErrResourceNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("buffer_collision")))
	src.AssertExpectations(t)
}

func TestService_Slots(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, nil, nil)

	slots, err := svc.Slots(context.Background(), "sauna", interval.DayOf(at(1, 0, 0)), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(1, 16, 0), at(1, 18, 0), at(1, 19, 0)}, slots)

	_, err = svc.Slots(context.Background(), "sauna", interval.DayOf(at(1, 0, 0)), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_SlotsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	svc := newService(t, src, NewSlotCache(rdb, time.Minute), m)

	day := interval.DayOf(at(1, 0, 0))
	first, err := svc.Slots(context.Background(), "sauna", day, time.Hour)
	require.NoError(t, err)
	second, err := svc.Slots(context.Background(), "sauna", day, time.Hour)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))

	key := SlotKey{Resource: "sauna", Revision: "rev-1", Day: day, Duration: time.Hour, At: now}
	assert.True(t, mr.Exists(key.String()))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(key.String()))
}

func TestService_SlotsCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, NewSlotCache(rdb, time.Minute), nil)

	slots, err := svc.Slots(context.Background(), "sauna", interval.DayOf(at(1, 0, 0)), time.Hour)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestService_NextAvailable(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, nil, nil)

	start, ok, err := svc.NextAvailable(context.Background(), "sauna", at(0, 19, 30), time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at(1, 16, 0), start)

	// Wednesday evening rolls over to next Monday.
	start, ok, err = svc.NextAvailable(context.Background(), "sauna", at(2, 19, 30), time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at(7, 16, 0), start)

	_, ok, err = svc.NextAvailable(context.Background(), "sauna", at(40, 0, 0), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = svc.NextAvailable(context.Background(), "sauna", time.Time{}, -time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_OpenDaysAndSchedule(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, nil, nil)
	today := interval.DayOf(now)

	days, err := svc.OpenDays(context.Background(), "sauna", today, today.AddDays(7), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []interval.Day{today, today.AddDays(1), today.AddDays(2), today.AddDays(7)}, days)

	// Tuesday only fits two hours after the existing reservation.
	slots, err := svc.Slots(context.Background(), "sauna", today.AddDays(1), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(1, 18, 0)}, slots)

	schedule, err := svc.Schedule(context.Background(), "sauna", today, today.AddDays(1), time.Hour)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Len(t, schedule[0].Slots, 4)
	assert.Len(t, schedule[1].Slots, 3)

	_, err = svc.OpenDays(context.Background(), "sauna", today, today.AddDays(-1), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.OpenDays(context.Background(), "sauna", today, today.AddDays(400), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_ScheduleReadsClockOnce(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)

	// Every later reading lands after today's last slot.
	calls := 0
	svc := New(src, nil, nil, zerolog.Nop(), Options{
		Location: time.UTC,
		Now: func() time.Time {
			calls++
			if calls == 1 {
				return now
			}
			return at(0, 19, 30)
		},
	})
	today := interval.DayOf(now)

	schedule, err := svc.Schedule(context.Background(), "sauna", today, today.AddDays(1), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, schedule, 2)
	assert.Equal(t, today, schedule[0].Day)
	assert.Len(t, schedule[0].Slots, 4)
	for _, ds := range schedule {
		assert.NotEmpty(t, ds.Slots, ds.Day)
	}

	_, err = svc.Schedule(context.Background(), "sauna", today, today.AddDays(-1), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSlotCache_KeepsLocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	loc := time.FixedZone("CET", 3600)
	cache := NewSlotCache(rdb, time.Minute)
	key := SlotKey{Resource: "sauna", Revision: "rev-1", Day: interval.DayOf(now), Duration: time.Hour, At: now}
	slots := []time.Time{
		time.Date(2026, 3, 2, 16, 0, 0, 0, loc),
		time.Date(2026, 3, 2, 17, 0, 0, 0, loc),
	}
	require.NoError(t, cache.Set(context.Background(), key, slots))

	got, ok, err := cache.Get(context.Background(), key, loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slots, got)
	for _, ts := range got {
		assert.Same(t, loc, ts.Location())
	}
}

func TestService_Durations(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, nil, nil)

	got, err := svc.Durations(context.Background(), "sauna")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour}, got)
}

func TestService_Recurring(t *testing.T) {
	src := new(mockSource)
	src.On("Resource", mock.Anything, "sauna").Return(sauna(), nil)
	svc := newService(t, src, nil, nil)
	today := interval.DayOf(now)

	results, err := svc.Recurring(context.Background(), "sauna", recurring.Pattern{
		StartDate: today,
		EndDate:   today.AddDays(13),
		StartTime: interval.NewClock(17, 0),
		EndTime:   interval.NewClock(18, 0),
		Weekdays:  []interval.Weekday{interval.Tuesday, interval.Thursday},
		Cadence:   recurring.Weekly,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	reasons := make([]availability.Reason, len(results))
	for i, r := range results {
		reasons[i] = r.Reason
	}
	assert.Equal(t, []availability.Reason{
		availability.ReasonBufferCollision,
		availability.ReasonStartNotAligned,
		availability.ReasonNone,
		availability.ReasonStartNotAligned,
	}, reasons)
	assert.Equal(t, at(8, 17, 0), results[2].Range.Start)
	assert.True(t, results[2].Reservable)
}

func TestCatalogSource(t *testing.T) {
	var swaps int
	src := NewCatalogSource(func(*config.Catalog) { swaps++ })
	ctx := context.Background()

	assert.False(t, src.Loaded())
	_, err := src.Resource(ctx, "sauna")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = src.Resources(ctx)
	assert.ErrorIs(t, err, ErrNotLoaded)

	res := sauna()
	res.Revision = ""
	require.NoError(t, src.SwapResources([]models.Resource{res}))
	assert.True(t, src.Loaded())
	assert.Equal(t, 1, swaps)

	got, err := src.Resource(ctx, "sauna")
	require.NoError(t, err)
	assert.Equal(t, src.Revision(), got.Revision)

	_, err = src.Resource(ctx, "gym")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	assert.Error(t, src.SwapResources(nil))
	assert.Equal(t, 1, swaps)
}

func TestRequestID(t *testing.T) {
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))
	assert.Len(t, RequestID(context.Background()), 36)
}
