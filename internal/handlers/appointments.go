// Package handlers exposes the appointment operations over HTTP. Every
// response uses the same envelope: a success flag, a human-readable
// message, an optional machine-readable error code, and the data.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rentora/appointment-service/internal/model"
	"github.com/rentora/appointment-service/internal/service"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger

	// Authorize, when set, is consulted before a request is dispatched.
	// The capability is "read" for GET requests and "write" for anything
	// that mutates an appointment. A non-nil error rejects the request
	// with 403. A nil Authorize allows everything.
	Authorize func(r *http.Request, capability string) error
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.Authorize == nil {
		return true
	}
	capability := "write"
	if r.Method == http.MethodGet {
		capability = "read"
	}
	if err := h.Authorize(r, capability); err != nil {
		writeJSON(w, http.StatusForbidden, envelope{Success: false, Message: err.Error()})
		return false
	}
	return true
}

// Register wires the appointment routes onto the mux. Identifier routes
// share one prefix handler that dispatches on the remaining path.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/appointments", h.collection)
	mux.HandleFunc("/api/v1/appointments/", h.resource)
}

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := service.CodeOf(err)
	message := "internal error"
	switch {
	case service.IsValidation(err):
		status = http.StatusBadRequest
		message = err.Error()
	case service.IsNotFound(err):
		status = http.StatusNotFound
		message = err.Error()
	case service.IsConflict(err):
		status = http.StatusConflict
		message = err.Error()
	case service.IsInvalidState(err):
		status = http.StatusConflict
		message = err.Error()
	case service.IsUnavailable(err):
		status = http.StatusServiceUnavailable
		message = "unable to verify provider availability"
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, envelope{Success: false, Message: message, ErrorCode: code})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Message: "method not allowed"})
}

// collection handles /api/v1/appointments.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.listAll(w, r)
	default:
		methodNotAllowed(w)
	}
}

// resource dispatches /api/v1/appointments/<rest>.
func (h *Handler) resource(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/appointments/"), "/")
	parts := strings.Split(rest, "/")

	switch parts[0] {
	case "requester", "provider", "property", "user":
		h.listByParticipant(w, r, parts)
		return
	case "status":
		h.listByStatus(w, r, parts)
		return
	case "type":
		h.listByType(w, r, parts)
		return
	case "date-range":
		h.listByDateRange(w, r)
		return
	case "available-slots":
		h.availableSlots(w, r)
		return
	case "conflict-check":
		h.conflictCheck(w, r)
		return
	case "confirm":
		h.confirmByToken(w, r, parts)
		return
	case "statistics":
		h.statistics(w, r, parts)
		return
	case "":
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}

	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getByID(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) == 2 {
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		switch parts[1] {
		case "confirm":
			h.confirm(w, r, id)
		case "cancel":
			h.cancel(w, r, id)
		case "reschedule":
			h.reschedule(w, r, id)
		case "complete":
			h.complete(w, r, id)
		case "no-show":
			h.markNoShow(w, r, id)
		default:
			writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		}
		return
	}
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
}

type appointmentRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Type            string    `json:"type"`
	PropertyID      int64     `json:"propertyId"`
	RequesterID     int64     `json:"requesterId"`
	ProviderID      int64     `json:"providerId"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
	MeetingLink     string    `json:"meetingLink"`
	IsRecurring     bool      `json:"isRecurring"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid json body"})
		return
	}
	view, err := h.svc.Create(r.Context(), service.CreateInput{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Type:            model.Type(req.Type),
		PropertyID:      req.PropertyID,
		RequesterID:     req.RequesterID,
		ProviderID:      req.ProviderID,
		Location:        req.Location,
		Notes:           req.Notes,
		MeetingLink:     req.MeetingLink,
		IsRecurring:     req.IsRecurring,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "appointment created", viewResponse(view))
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("details") == "true" {
		views, err := h.svc.ListAllWithDetails(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, "appointments retrieved", viewResponses(views))
		return
	}
	appts, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointments retrieved", appointmentResponses(appts))
}

func (h *Handler) listByParticipant(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if len(parts) < 2 || len(parts) > 3 || (len(parts) == 3 && parts[2] != "details") {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid id"})
		return
	}
	details := len(parts) == 3

	if details {
		var views []model.EnrichedAppointment
		var lerr error
		switch parts[0] {
		case "requester":
			views, lerr = h.svc.ListByRequesterWithDetails(r.Context(), id)
		case "provider":
			views, lerr = h.svc.ListByProviderWithDetails(r.Context(), id)
		case "property":
			views, lerr = h.svc.ListByPropertyWithDetails(r.Context(), id)
		default:
			writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
			return
		}
		if lerr != nil {
			h.writeError(w, r, lerr)
			return
		}
		writeOK(w, http.StatusOK, "appointments retrieved", viewResponses(views))
		return
	}

	var appts []model.Appointment
	var lerr error
	switch parts[0] {
	case "requester":
		appts, lerr = h.svc.ListByRequester(r.Context(), id)
	case "provider":
		appts, lerr = h.svc.ListByProvider(r.Context(), id)
	case "property":
		appts, lerr = h.svc.ListByProperty(r.Context(), id)
	case "user":
		appts, lerr = h.svc.ListByUser(r.Context(), id)
	}
	if lerr != nil {
		h.writeError(w, r, lerr)
		return
	}
	writeOK(w, http.StatusOK, "appointments retrieved", appointmentResponses(appts))
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}
	appts, err := h.svc.ListByStatus(r.Context(), model.Status(strings.ToUpper(parts[1])))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointments retrieved", appointmentResponses(appts))
}

func (h *Handler) listByType(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}
	appts, err := h.svc.ListByType(r.Context(), model.Type(strings.ToUpper(parts[1])))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointments retrieved", appointmentResponses(appts))
}

func (h *Handler) listByDateRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid from: expected RFC 3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid to: expected RFC 3339"})
		return
	}
	appts, err := h.svc.ListByDateRange(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointments retrieved", appointmentResponses(appts))
}

func (h *Handler) availableSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	providerID, err := strconv.ParseInt(q.Get("providerId"), 10, 64)
	if err != nil || providerID <= 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid providerId"})
		return
	}
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid date: expected YYYY-MM-DD"})
		return
	}
	duration := 30
	if v := q.Get("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid duration"})
			return
		}
	}
	slots, err := h.svc.AvailableSlots(r.Context(), providerID, date, duration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format(time.RFC3339))
	}
	writeOK(w, http.StatusOK, "available slots retrieved", out)
}

func (h *Handler) conflictCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	providerID, err := strconv.ParseInt(q.Get("providerId"), 10, 64)
	if err != nil || providerID <= 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid providerId"})
		return
	}
	start, err := time.Parse(time.RFC3339, q.Get("startTime"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid startTime: expected RFC 3339"})
		return
	}
	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid duration"})
		return
	}
	conflict, err := h.svc.HasConflictingAppointment(r.Context(), providerID, start, duration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "conflict check complete", map[string]bool{"hasConflict": conflict})
}

// confirmByToken handles PUT /api/v1/appointments/confirm/token/<token>.
func (h *Handler) confirmByToken(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	if len(parts) != 3 || parts[1] != "token" {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}
	view, err := h.svc.ConfirmByToken(r.Context(), parts[2])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment confirmed", viewResponse(view))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "not found"})
		return
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid user id"})
		return
	}
	stats, err := h.svc.Statistics(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "statistics computed", map[string]any{
		"userId":    stats.UserID,
		"total":     stats.Total,
		"completed": stats.Completed,
		"cancelled": stats.Cancelled,
		"upcoming":  stats.Upcoming,
	})
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment retrieved", viewResponse(view))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Location    *string `json:"location"`
		Notes       *string `json:"notes"`
		MeetingLink *string `json:"meetingLink"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid json body"})
		return
	}
	view, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Notes:       req.Notes,
		MeetingLink: req.MeetingLink,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment updated", viewResponse(view))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment deleted", nil)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment confirmed", viewResponse(view))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	view, err := h.svc.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment cancelled", viewResponse(view))
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		NewStartTime time.Time `json:"newStartTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid json body"})
		return
	}
	view, err := h.svc.Reschedule(r.Context(), id, req.NewStartTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment rescheduled", viewResponse(view))
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.svc.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment completed", viewResponse(view))
}

func (h *Handler) markNoShow(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.svc.MarkNoShow(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "appointment marked as no-show", viewResponse(view))
}
