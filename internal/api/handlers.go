package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookable/internal/availability"
	"bookable/internal/interval"
	"bookable/internal/models"
	"bookable/internal/recurring"
	"bookable/internal/report"
	"bookable/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	dateLayout      = "2006-01-02"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var requests = validator.New(validator.WithRequiredStructEnabled())

// ResourceResponse describes a resource without its occupancy.
type ResourceResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name,omitempty"`
	Revision    string               `json:"revision"`
	Constraints models.Constraints   `json:"constraints"`
	Hours       *models.OpeningHours `json:"opening_hours,omitempty"`
}

func toResourceResponse(r models.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Name:        r.Name,
		Revision:    r.Revision,
		Constraints: r.Constraints,
		Hours:       r.Hours,
	}
}

// CheckRequest is the body of POST /api/v1/resources/{id}/check.
type CheckRequest struct {
	Start           time.Time `json:"start" validate:"required"`
	End             time.Time `json:"end" validate:"required"`
	SkipLengthCheck bool      `json:"skip_length_check"`
}

// CheckResponse reports whether the range can be reserved.
type CheckResponse struct {
	Reservable bool                `json:"reservable"`
	Reason     availability.Reason `json:"reason"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
}

// SlotsResponse lists legal start times of one day.
type SlotsResponse struct {
	Date            interval.Day `json:"date"`
	DurationMinutes int          `json:"duration_minutes"`
	Slots           []time.Time  `json:"slots"`
}

// NextResponse is the result of a next-available search.
type NextResponse struct {
	Found bool       `json:"found"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// DaySlotsResponse is one day of a schedule.
type DaySlotsResponse struct {
	Date  interval.Day `json:"date"`
	Slots []time.Time  `json:"slots,omitempty"`
}

// DaysResponse lists open days, optionally with their slots.
type DaysResponse struct {
	From            interval.Day       `json:"from"`
	To              interval.Day       `json:"to"`
	DurationMinutes int                `json:"duration_minutes"`
	Days            []DaySlotsResponse `json:"days"`
}

// RecurringRequest is the body of POST /api/v1/resources/{id}/recurring.
type RecurringRequest struct {
	StartDate interval.Day       `json:"start_date" validate:"required"`
	EndDate   interval.Day       `json:"end_date" validate:"required,gtefield=StartDate"`
	StartTime interval.Clock     `json:"start_time"`
	EndTime   interval.Clock     `json:"end_time" validate:"gtfield=StartTime"`
	Weekdays  []interval.Weekday `json:"weekdays" validate:"required,min=1"`
	Cadence   recurring.Cadence  `json:"cadence" validate:"omitempty,oneof=weekly biweekly"`
}

// RecurringResponse lists every expanded occurrence with its outcome.
type RecurringResponse struct {
	Occurrences []service.RecurringResult `json:"occurrences"`
	Reservable  int                       `json:"reservable"`
}

// handleResources lists resources.
// GET /api/v1/resources
func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Resources(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]ResourceResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toResourceResponse(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": out})
}

// handleResource returns one resource.
// GET /api/v1/resources/{id}
func (s *HTTPServer) handleResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Resource(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceResponse(res))
}

// handleCheck validates a candidate range.
// POST /api/v1/resources/{id}/check
func (s *HTTPServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	span := interval.Range{Start: req.Start, End: req.End}
	res, err := s.svc.Check(r.Context(), mux.Vars(r)["id"], span, req.SkipLengthCheck)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{
		Reservable: res.Reservable,
		Reason:     res.Reason,
		Start:      req.Start,
		End:        req.End,
	})
}

// handleSlots lists legal start times for a day.
// GET /api/v1/resources/{id}/slots?date=YYYY-MM-DD&duration=MINUTES
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := parseDay(q.Get("date"), "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseMinutes(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.svc.Slots(r.Context(), mux.Vars(r)["id"], day, d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{Date: day, DurationMinutes: int(d / time.Minute), Slots: slots})
}

// handleNext finds the earliest legal start.
// GET /api/v1/resources/{id}/next?duration=MINUTES[&from=RFC3339]
func (s *HTTPServer) handleNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := parseMinutes(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var from time.Time
	if raw := q.Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from; expected RFC3339")
			return
		}
	}

	start, ok, err := s.svc.NextAvailable(r.Context(), mux.Vars(r)["id"], from, d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := NextResponse{Found: ok}
	if ok {
		end := start.Add(d)
		resp.Start, resp.End = &start, &end
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDays lists open days in a range.
// GET /api/v1/resources/{id}/days?from=YYYY-MM-DD&to=YYYY-MM-DD&duration=MINUTES[&slots=true]
func (s *HTTPServer) handleDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"), "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDay(q.Get("to"), "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseMinutes(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	resp := DaysResponse{From: from, To: to, DurationMinutes: int(d / time.Minute), Days: []DaySlotsResponse{}}

	if q.Get("slots") == "true" {
		schedule, err := s.svc.Schedule(r.Context(), id, from, to, d)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		for _, ds := range schedule {
			resp.Days = append(resp.Days, DaySlotsResponse{Date: ds.Day, Slots: ds.Slots})
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	days, err := s.svc.OpenDays(r.Context(), id, from, to, d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	for _, day := range days {
		resp.Days = append(resp.Days, DaySlotsResponse{Date: day})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDurations lists selectable reservation lengths.
// GET /api/v1/resources/{id}/durations
func (s *HTTPServer) handleDurations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Durations(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	minutes := make([]int, len(list))
	for i, d := range list {
		minutes[i] = int(d / time.Minute)
	}
	writeJSON(w, http.StatusOK, map[string]any{"durations_minutes": minutes})
}

// handleRecurring validates every occurrence of a weekly pattern.
// POST /api/v1/resources/{id}/recurring
func (s *HTTPServer) handleRecurring(w http.ResponseWriter, r *http.Request) {
	var req RecurringRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.svc.Recurring(r.Context(), mux.Vars(r)["id"], recurring.Pattern{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Weekdays:  req.Weekdays,
		Cadence:   req.Cadence,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := RecurringResponse{Occurrences: results}
	if resp.Occurrences == nil {
		resp.Occurrences = []service.RecurringResult{}
	}
	for _, res := range results {
		if res.Reservable {
			resp.Reservable++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExport downloads the open slots of a day range as an xlsx workbook.
// GET /api/v1/resources/{id}/export?from=YYYY-MM-DD&to=YYYY-MM-DD&duration=MINUTES
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"), "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDay(q.Get("to"), "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := parseMinutes(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := report.Request{Resource: mux.Vars(r)["id"], From: from, To: to, Duration: d}
	var buf bytes.Buffer
	if _, err := s.exporter.Export(r.Context(), req, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if err := requests.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %v", err)
	}
	return nil
}

func parseDay(raw, name string) (interval.Day, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format; expected YYYY-MM-DD", name)
	}
	return interval.FromDate(t.Year(), t.Month(), t.Day()), nil
}

func parseMinutes(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("duration is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("duration must be a positive number of minutes")
	}
	return time.Duration(n) * time.Minute, nil
}
