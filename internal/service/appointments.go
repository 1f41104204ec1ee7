// Package service implements the appointment lifecycle: creation with
// conflict and duplicate checks, status transitions with per-command
// guards, slot generation, and the read paths that feed the enrichment
// pipeline.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rentora/appointment-service/internal/enrichment"
	"github.com/rentora/appointment-service/internal/events"
	"github.com/rentora/appointment-service/internal/model"
	"github.com/rentora/appointment-service/internal/scheduling"
	"github.com/rentora/appointment-service/internal/storage"
)

// Store is the persistence surface the service depends on. Satisfied by
// storage.AppointmentRepository; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, a *model.Appointment) (model.Appointment, error)
	Update(ctx context.Context, a *model.Appointment) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	FindByConfirmationToken(ctx context.Context, token string) (model.Appointment, error)
	FindByRequester(ctx context.Context, requesterID int64) ([]model.Appointment, error)
	FindByProvider(ctx context.Context, providerID int64) ([]model.Appointment, error)
	FindByProperty(ctx context.Context, propertyID int64) ([]model.Appointment, error)
	FindByUser(ctx context.Context, userID int64) ([]model.Appointment, error)
	FindByStatus(ctx context.Context, status model.Status) ([]model.Appointment, error)
	FindByType(ctx context.Context, t model.Type) ([]model.Appointment, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	FindAll(ctx context.Context) ([]model.Appointment, error)
	FindProviderBooked(ctx context.Context, providerID int64, from, to time.Time) ([]model.Appointment, error)
	ExistsDuplicate(ctx context.Context, requesterID, providerID, propertyID int64, start time.Time) (bool, error)
	FindPendingReminders(ctx context.Context, status model.Status, cutoff time.Time) ([]model.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// Config tunes scheduling policy. Zero values fall back to the
// 09:00-17:00 / 30-minute defaults and a 24h reminder lookahead.
type Config struct {
	Hours             scheduling.BusinessHours
	ReminderLookahead time.Duration
}

type Service struct {
	store    Store
	enricher *enrichment.Enricher
	emitter  events.Emitter
	logger   *slog.Logger
	hours    scheduling.BusinessHours
	reminder time.Duration
	now      func() time.Time
}

func New(store Store, enricher *enrichment.Enricher, emitter events.Emitter, logger *slog.Logger, cfg Config) *Service {
	hours := cfg.Hours
	if hours.SlotInterval <= 0 {
		hours = scheduling.DefaultBusinessHours()
	}
	lookahead := cfg.ReminderLookahead
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}
	return &Service{
		store:    store,
		enricher: enricher,
		emitter:  emitter,
		logger:   logger,
		hours:    hours,
		reminder: lookahead,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput carries the caller-supplied fields of a new appointment.
type CreateInput struct {
	Title           string
	Description     string
	StartTime       time.Time
	DurationMinutes int
	Type            model.Type
	PropertyID      int64
	RequesterID     int64
	ProviderID      int64
	Location        string
	Notes           string
	MeetingLink     string
	IsRecurring     bool
}

func (in CreateInput) validate(now time.Time) error {
	switch {
	case in.Title == "":
		return errInvalidInput("title is required")
	case in.DurationMinutes <= 0:
		return errInvalidInput("duration must be positive")
	case in.RequesterID <= 0 || in.ProviderID <= 0 || in.PropertyID <= 0:
		return errInvalidInput("requester, provider and property ids are required")
	case in.StartTime.IsZero():
		return errInvalidInput("start time is required")
	case !in.StartTime.After(now):
		return errInvalidTime("appointment time must be in the future")
	}
	if in.Type != "" && !model.ValidType(in.Type) {
		return errInvalidInput("unknown appointment type: " + string(in.Type))
	}
	return nil
}

// Create registers a new PENDING appointment. The duplicate and conflict
// checks run first for friendly errors; the store's constraints close the
// remaining race and are mapped onto the same error codes.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.EnrichedAppointment, error) {
	now := s.now()
	if err := in.validate(now); err != nil {
		return model.EnrichedAppointment{}, err
	}

	dup, err := s.store.ExistsDuplicate(ctx, in.RequesterID, in.ProviderID, in.PropertyID, in.StartTime)
	if err != nil {
		return model.EnrichedAppointment{}, errUnavailable(err)
	}
	if dup {
		return model.EnrichedAppointment{}, errDuplicate()
	}

	end := in.StartTime.Add(time.Duration(in.DurationMinutes) * time.Minute)
	if err := s.checkWindowFree(ctx, in.ProviderID, in.StartTime, end, ""); err != nil {
		return model.EnrichedAppointment{}, err
	}

	typ := in.Type
	if typ == "" {
		typ = model.TypeViewing
	}
	a := model.Appointment{
		Title:             in.Title,
		Description:       in.Description,
		StartTime:         in.StartTime,
		DurationMinutes:   in.DurationMinutes,
		Status:            model.StatusPending,
		Type:              typ,
		PropertyID:        in.PropertyID,
		RequesterID:       in.RequesterID,
		ProviderID:        in.ProviderID,
		Location:          in.Location,
		Notes:             in.Notes,
		MeetingLink:       in.MeetingLink,
		IsRecurring:       in.IsRecurring,
		ConfirmationToken: uuid.NewString(),
	}
	saved, err := s.store.Create(ctx, &a)
	if err != nil {
		switch {
		case storage.IsDuplicate(err):
			return model.EnrichedAppointment{}, errDuplicate()
		case storage.IsConflict(err):
			return model.EnrichedAppointment{}, errTimeConflict()
		}
		return model.EnrichedAppointment{}, err
	}

	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeCreated, view, events.Extra{})
	return view, nil
}

// checkWindowFree loads the provider's active bookings intersecting the
// window and runs the overlap predicate. A store failure blocks the
// operation: the window cannot be proven free.
func (s *Service) checkWindowFree(ctx context.Context, providerID int64, start, end time.Time, excludeID string) error {
	busy, err := s.store.FindProviderBooked(ctx, providerID, start, end)
	if err != nil {
		return errUnavailable(err)
	}
	conflict, err := scheduling.HasConflict(busy, start, end, excludeID)
	if err != nil {
		return errInvalidTime(err.Error())
	}
	if conflict {
		return errTimeConflict()
	}
	return nil
}

// HasConflictingAppointment exposes the conflict predicate as a read
// operation.
func (s *Service) HasConflictingAppointment(ctx context.Context, providerID int64, start time.Time, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		return false, errInvalidInput("duration must be positive")
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	err := s.checkWindowFree(ctx, providerID, start, end, "")
	switch {
	case err == nil:
		return false, nil
	case CodeOf(err) == CodeTimeConflict:
		return true, nil
	}
	return false, err
}

// AvailableSlots lists the free start times for a provider on a given day.
func (s *Service) AvailableSlots(ctx context.Context, providerID int64, date time.Time, durationMinutes int) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, errInvalidInput("duration must be positive")
	}
	dayStart, dayEnd := s.hours.Window(date)
	busy, err := s.store.FindProviderBooked(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, errUnavailable(err)
	}
	return scheduling.AvailableSlots(date, busy, durationMinutes, s.hours), nil
}

func (s *Service) load(ctx context.Context, id string) (model.Appointment, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, errNotFound(id)
		}
		return model.Appointment{}, err
	}
	return a, nil
}

// GetByID returns the enriched view of one appointment.
func (s *Service) GetByID(ctx context.Context, id string) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	return s.enricher.Enrich(ctx, a), nil
}

// Confirm moves a PENDING appointment to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id string) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	return s.confirm(ctx, a)
}

// ConfirmByToken resolves the one-time confirmation token and confirms.
// An unknown token is reported as an invalid token, not a generic miss.
func (s *Service) ConfirmByToken(ctx context.Context, token string) (model.EnrichedAppointment, error) {
	if token == "" {
		return model.EnrichedAppointment{}, errInvalidToken()
	}
	a, err := s.store.FindByConfirmationToken(ctx, token)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.EnrichedAppointment{}, errInvalidToken()
		}
		return model.EnrichedAppointment{}, err
	}
	return s.confirm(ctx, a)
}

func (s *Service) confirm(ctx context.Context, a model.Appointment) (model.EnrichedAppointment, error) {
	if a.Status != model.StatusPending {
		return model.EnrichedAppointment{}, errInvalidStatus("confirm", string(a.Status))
	}
	a.Status = model.StatusConfirmed
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeConfirmed, view, events.Extra{})
	return view, nil
}

// Cancel records a cancellation with its reason. Completed and already
// cancelled appointments are out of reach.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	if a.Status == model.StatusCancelled || a.Status == model.StatusCompleted {
		return model.EnrichedAppointment{}, errInvalidStatus("cancel", string(a.Status))
	}
	a.Status = model.StatusCancelled
	a.CancellationReason = reason
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeCancelled, view, events.Extra{CancellationReason: reason})
	return view, nil
}

// Reschedule moves the appointment to a new start time after re-running
// the conflict check, excluding the appointment's own window.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	if a.Status == model.StatusCompleted || a.Status == model.StatusCancelled {
		return model.EnrichedAppointment{}, errInvalidStatus("reschedule", string(a.Status))
	}
	if !newStart.After(s.now()) {
		return model.EnrichedAppointment{}, errInvalidTime("appointment time must be in the future")
	}
	end := newStart.Add(time.Duration(a.DurationMinutes) * time.Minute)
	if err := s.checkWindowFree(ctx, a.ProviderID, newStart, end, a.ID); err != nil {
		return model.EnrichedAppointment{}, err
	}

	previous := a.StartTime
	a.StartTime = newStart
	a.Status = model.StatusRescheduled
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		if storage.IsConflict(err) {
			return model.EnrichedAppointment{}, errTimeConflict()
		}
		return model.EnrichedAppointment{}, err
	}
	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeRescheduled, view, events.Extra{PreviousStartTime: &previous})
	return view, nil
}

// Complete closes out a CONFIRMED or RESCHEDULED appointment.
func (s *Service) Complete(ctx context.Context, id string) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	if a.Status != model.StatusConfirmed && a.Status != model.StatusRescheduled {
		return model.EnrichedAppointment{}, errInvalidStatus("complete", string(a.Status))
	}
	a.Status = model.StatusCompleted
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeCompleted, view, events.Extra{})
	return view, nil
}

// MarkNoShow is unconditional and emits no event; it frees the window
// without notifying subscribers.
func (s *Service) MarkNoShow(ctx context.Context, id string) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	a.Status = model.StatusNoShow
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	return s.enricher.Enrich(ctx, saved), nil
}

// UpdateInput carries the mutable display fields. Nil means keep.
type UpdateInput struct {
	Title       *string
	Description *string
	Location    *string
	Notes       *string
	MeetingLink *string
}

// Update replaces the display fields of a live appointment. Timing,
// participants and status are untouchable through this path.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.EnrichedAppointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	if a.Status == model.StatusCompleted || a.Status == model.StatusCancelled {
		return model.EnrichedAppointment{}, errInvalidStatus("update", string(a.Status))
	}
	if in.Title != nil {
		if *in.Title == "" {
			return model.EnrichedAppointment{}, errInvalidInput("title is required")
		}
		a.Title = *in.Title
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Location != nil {
		a.Location = *in.Location
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}
	if in.MeetingLink != nil {
		a.MeetingLink = *in.MeetingLink
	}
	saved, err := s.store.Update(ctx, &a)
	if err != nil {
		return model.EnrichedAppointment{}, err
	}
	view := s.enricher.Enrich(ctx, saved)
	s.emitter.Emit(ctx, events.TypeUpdated, view, events.Extra{})
	return view, nil
}

// Delete removes the appointment unconditionally. No event.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return errNotFound(id)
		}
		return err
	}
	return nil
}

// --- read paths -----------------------------------------------------------

func (s *Service) ListByRequester(ctx context.Context, requesterID int64) ([]model.Appointment, error) {
	return s.store.FindByRequester(ctx, requesterID)
}

func (s *Service) ListByProvider(ctx context.Context, providerID int64) ([]model.Appointment, error) {
	return s.store.FindByProvider(ctx, providerID)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID int64) ([]model.Appointment, error) {
	return s.store.FindByProperty(ctx, propertyID)
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]model.Appointment, error) {
	return s.store.FindByUser(ctx, userID)
}

func (s *Service) ListByStatus(ctx context.Context, status model.Status) ([]model.Appointment, error) {
	if !model.ValidStatus(status) {
		return nil, errInvalidInput("unknown status: " + string(status))
	}
	return s.store.FindByStatus(ctx, status)
}

func (s *Service) ListByType(ctx context.Context, t model.Type) ([]model.Appointment, error) {
	if !model.ValidType(t) {
		return nil, errInvalidInput("unknown appointment type: " + string(t))
	}
	return s.store.FindByType(ctx, t)
}

func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	if !to.After(from) {
		return nil, errInvalidInput("date range end must be after start")
	}
	return s.store.FindByDateRange(ctx, from, to)
}

func (s *Service) ListAll(ctx context.Context) ([]model.Appointment, error) {
	return s.store.FindAll(ctx)
}

// WithDetails variants run the batch enrichment pipeline over a list.

func (s *Service) ListByRequesterWithDetails(ctx context.Context, requesterID int64) ([]model.EnrichedAppointment, error) {
	appts, err := s.store.FindByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichAll(ctx, appts), nil
}

func (s *Service) ListByProviderWithDetails(ctx context.Context, providerID int64) ([]model.EnrichedAppointment, error) {
	appts, err := s.store.FindByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichAll(ctx, appts), nil
}

func (s *Service) ListByPropertyWithDetails(ctx context.Context, propertyID int64) ([]model.EnrichedAppointment, error) {
	appts, err := s.store.FindByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichAllWithProperty(ctx, appts, propertyID), nil
}

func (s *Service) ListAllWithDetails(ctx context.Context) ([]model.EnrichedAppointment, error) {
	appts, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichAll(ctx, appts), nil
}

// Statistics aggregates a user's appointment history.
func (s *Service) Statistics(ctx context.Context, userID int64) (model.Statistics, error) {
	appts, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return model.Statistics{}, err
	}
	now := s.now()
	stats := model.Statistics{UserID: userID, Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case model.StatusCompleted:
			stats.Completed++
		case model.StatusCancelled:
			stats.Cancelled++
		}
		if a.StartTime.After(now) && (a.Status == model.StatusConfirmed || a.Status == model.StatusPending) {
			stats.Upcoming++
		}
	}
	return stats, nil
}

// UpcomingForReminders lists CONFIRMED appointments starting within the
// reminder lookahead that have not been reminded yet.
func (s *Service) UpcomingForReminders(ctx context.Context) ([]model.Appointment, error) {
	cutoff := s.now().Add(s.reminder)
	return s.store.FindPendingReminders(ctx, model.StatusConfirmed, cutoff)
}

// MarkReminderSent flags an appointment so the reminder worker does not
// pick it up again.
func (s *Service) MarkReminderSent(ctx context.Context, id string) error {
	if err := s.store.MarkReminderSent(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return errNotFound(id)
		}
		return err
	}
	return nil
}

// EnrichForEvent exposes the enrichment pipeline for workers that emit
// events outside a command, such as reminders.
func (s *Service) EnrichForEvent(ctx context.Context, a model.Appointment) model.EnrichedAppointment {
	return s.enricher.Enrich(ctx, a)
}

// Emit forwards to the configured emitter.
func (s *Service) Emit(ctx context.Context, eventType string, v model.EnrichedAppointment) {
	s.emitter.Emit(ctx, eventType, v, events.Extra{})
}
