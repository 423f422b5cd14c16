package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bookable/internal/metrics"
	"bookable/internal/report"
	"bookable/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Options configure the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsPath    string
	MetricsHandler http.Handler

	// Ready reports extra readiness checks, for example the cache connection.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the availability service over JSON.
type HTTPServer struct {
	svc      *service.Service
	exporter *report.Exporter
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	limiter  *rate.Limiter
	ready    func(ctx context.Context) error

	router *mux.Router
	server *http.Server
}

// NewHTTPServer wires routes and middleware. m may be nil.
func NewHTTPServer(svc *service.Service, m *metrics.Metrics, logger zerolog.Logger, opts Options) *HTTPServer {
	s := &HTTPServer{
		svc:      svc,
		exporter: report.NewExporter(svc, logger),
		metrics:  m,
		logger:   logger.With().Str("component", "http_api").Logger(),
		ready:    opts.Ready,
		router:   mux.NewRouter(),
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	s.routes(opts)
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes(opts Options) {
	r := s.router
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet).Name("readyz")
	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, opts.MetricsHandler).Methods(http.MethodGet).Name("metrics")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimit)

	api.HandleFunc("/resources", s.handleResources).Methods(http.MethodGet).Name("resources")
	api.HandleFunc("/resources/{id}", s.handleResource).Methods(http.MethodGet).Name("resource")
	api.HandleFunc("/resources/{id}/check", s.handleCheck).Methods(http.MethodPost).Name("check")
	api.HandleFunc("/resources/{id}/slots", s.handleSlots).Methods(http.MethodGet).Name("slots")
	api.HandleFunc("/resources/{id}/next", s.handleNext).Methods(http.MethodGet).Name("next")
	api.HandleFunc("/resources/{id}/days", s.handleDays).Methods(http.MethodGet).Name("days")
	api.HandleFunc("/resources/{id}/durations", s.handleDurations).Methods(http.MethodGet).Name("durations")
	api.HandleFunc("/resources/{id}/recurring", s.handleRecurring).Methods(http.MethodPost).Name("recurring")
	api.HandleFunc("/resources/{id}/export", s.handleExport).Methods(http.MethodGet).Name("export")
}

// Handler returns the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Resources(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(service.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
			route = cur.GetName()
		}
		if s.metrics != nil {
			s.metrics.IncHTTP(route, strconv.Itoa(rec.status))
		}

		ev := s.logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("request_id", service.RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("request served")
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.IncRateLimited()
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Str("request_id", service.RequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
