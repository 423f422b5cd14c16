package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookable/internal/interval"
	"bookable/internal/metrics"
	"bookable/internal/models"
	"bookable/internal/report"
	"bookable/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Monday 2026-03-02 08:00 UTC.
var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type ErrorResponse struct {
	Error string `json:"error"`
}

type testServer struct {
	handler http.Handler
	source  *service.CatalogSource
	metrics *metrics.Metrics
}

func sauna() models.Resource {
	return models.Resource{
		ID:   "sauna",
		Name: "Sauna",
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
			{
				Start: time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC),
				State: models.StateConfirmed,
			},
		},
	}
}

func setupTestServer(t *testing.T, load bool, opts Options) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)

	src := service.NewCatalogSource(nil)
	if load {
		require.NoError(t, src.SwapResources([]models.Resource{sauna()}))
	}
	svc := service.New(src, nil, m, zerolog.Nop(), service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})

	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
		opts.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	srv := NewHTTPServer(svc, m, zerolog.Nop(), opts)
	return &testServer{handler: srv.Handler(), source: src, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthAndReady(t *testing.T) {
	ts := setupTestServer(t, false, Options{})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)

	rec := ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, ts.source.SwapResources([]models.Resource{sauna()}))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).Code)

	failing := setupTestServer(t, true, Options{
		Ready: func(context.Context) error { return errors.New("redis down") },
	})
	rec = failing.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis down", decode[ErrorResponse](t, rec).Error)
}

func TestHandleResources(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Resources []ResourceResponse `json:"resources"`
	}](t, rec)
	require.Len(t, list.Resources, 1)
	assert.Equal(t, "sauna", list.Resources[0].ID)
	assert.NotEmpty(t, list.Resources[0].Revision)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sauna", decode[ResourceResponse](t, rec).Name)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/gym", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCheck(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	tests := []struct {
		name       string
		resource   string
		body       any
		wantStatus int
		wantReason string
	}{
		{
			name:     "free range",
			resource: "sauna",
			body: map[string]string{
				"start": "2026-03-02T16:00:00Z",
				"end":   "2026-03-02T18:00:00Z",
			},
			wantStatus: http.StatusOK,
			wantReason: "ok",
		},
		{
			name:     "touches existing reservation",
			resource: "sauna",
			body: map[string]string{
				"start": "2026-03-03T16:00:00Z",
				"end":   "2026-03-03T18:00:00Z",
			},
			wantStatus: http.StatusOK,
			wantReason: "buffer_collision",
		},
		{
			name:     "too short without skip",
			resource: "sauna",
			body: map[string]any{
				"start": "2026-03-02T16:00:00Z",
				"end":   "2026-03-02T16:30:00Z",
			},
			wantStatus: http.StatusOK,
			wantReason: "too_short",
		},
		{
			name:       "invalid json",
			resource:   "sauna",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			resource:   "sauna",
			body:       map[string]string{"from": "2026-03-02T16:00:00Z"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing end",
			resource:   "sauna",
			body:       map[string]string{"start": "2026-03-02T16:00:00Z"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "unknown resource",
			resource: "gym",
			body: map[string]string{
				"start": "2026-03-02T16:00:00Z",
				"end":   "2026-03-02T18:00:00Z",
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/resources/"+tt.resource+"/check", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
				return
			}
			resp := decode[map[string]any](t, rec)
			assert.Equal(t, tt.wantReason, resp["reason"])
			assert.Equal(t, tt.wantReason == "ok", resp["reservable"])
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequests.WithLabelValues("check", "404")))
}

func TestHandleSlots(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources/sauna/slots?date=2026-03-02&duration=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SlotsResponse](t, rec)
	assert.Equal(t, interval.FromDate(2026, 3, 2), resp.Date)
	assert.Equal(t, 60, resp.DurationMinutes)
	require.Len(t, resp.Slots, 4)
	assert.True(t, resp.Slots[0].Equal(time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)))

	// Thursday has no opening hours.
	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/slots?date=2026-03-05&duration=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slots":[]`)

	for _, q := range []string{"duration=60", "date=02-03-2026&duration=60", "date=2026-03-02", "date=2026-03-02&duration=-5"} {
		rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/slots?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandleNext(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources/sauna/next?from=2026-03-02T19:30:00Z&duration=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[NextResponse](t, rec)
	require.True(t, resp.Found)
	assert.True(t, resp.Start.Equal(time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC)))
	assert.True(t, resp.End.Equal(time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)))

	// Past the opening hours horizon.
	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/next?from=2026-05-01T00:00:00Z&duration=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[NextResponse](t, rec)
	assert.False(t, resp.Found)
	assert.Nil(t, resp.Start)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/next?from=tomorrow&duration=60", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDays(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources/sauna/days?from=2026-03-02&to=2026-03-09&duration=120", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DaysResponse](t, rec)
	days := make([]string, len(resp.Days))
	for i, d := range resp.Days {
		days[i] = d.Date.String()
		assert.Empty(t, d.Slots)
	}
	assert.Equal(t, []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-09"}, days)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/days?from=2026-03-02&to=2026-03-03&duration=120&slots=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[DaysResponse](t, rec)
	require.Len(t, resp.Days, 2)
	assert.Len(t, resp.Days[0].Slots, 3)
	assert.Len(t, resp.Days[1].Slots, 1)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/sauna/days?from=2026-03-09&to=2026-03-02&duration=60", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDurations(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources/sauna/durations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Minutes []int `json:"durations_minutes"`
	}](t, rec)
	assert.Equal(t, []int{60, 120, 180}, resp.Minutes)
}

func TestHandleRecurring(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodPost, "/api/v1/resources/sauna/recurring", map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-03-15",
		"start_time": "17:00",
		"end_time":   "18:00",
		"weekdays":   []string{"tuesday", "thu"},
		"cadence":    "weekly",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Occurrences []struct {
			Reservable bool   `json:"reservable"`
			Reason     string `json:"reason"`
		} `json:"occurrences"`
		Reservable int `json:"reservable"`
	}](t, rec)
	require.Len(t, resp.Occurrences, 4)
	assert.Equal(t, 1, resp.Reservable)
	assert.Equal(t, "buffer_collision", resp.Occurrences[0].Reason)
	assert.True(t, resp.Occurrences[2].Reservable)

	tests := map[string]map[string]any{
		"no weekdays": {
			"start_date": "2026-03-02", "end_date": "2026-03-15",
			"start_time": "17:00", "end_time": "18:00",
		},
		"end before start": {
			"start_date": "2026-03-15", "end_date": "2026-03-02",
			"start_time": "17:00", "end_time": "18:00", "weekdays": []string{"mon"},
		},
		"unknown cadence": {
			"start_date": "2026-03-02", "end_date": "2026-03-15",
			"start_time": "17:00", "end_time": "18:00", "weekdays": []string{"mon"}, "cadence": "monthly",
		},
		"bad weekday": {
			"start_date": "2026-03-02", "end_date": "2026-03-15",
			"start_time": "17:00", "end_time": "18:00", "weekdays": []string{"someday"},
		},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/resources/sauna/recurring", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	ts := setupTestServer(t, true, Options{RequestsPerSecond: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/resources", nil).Code)
	rec := ts.do(t, http.MethodGet, "/api/v1/resources", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Probes are not limited.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RateLimited))
}

func TestRequestIDHeader(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	ts.do(t, http.MethodGet, "/api/v1/resources/sauna/durations", nil)
	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_http_requests_total{code="200",route="durations"} 1`), body)
}

func TestHandleExport(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	rec := ts.do(t, http.MethodGet, "/api/v1/resources/sauna/export?from=2026-03-02&to=2026-03-03&duration=60", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sauna_2026-03-02_2026-03-03_60m.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SlotsSheet)
	require.NoError(t, err)
	// Header, four Monday slots, three Tuesday slots.
	assert.Len(t, rows, 8)

	rec = ts.do(t, http.MethodGet, "/api/v1/resources/gym/export?from=2026-03-02&to=2026-03-03&duration=60", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
