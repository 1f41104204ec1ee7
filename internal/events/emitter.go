// Package events builds lifecycle event snapshots and hands them to the
// outbox. Emission is fire-and-forget from the command's point of view:
// failures are logged, never returned to the caller.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rentora/appointment-service/internal/model"
	"github.com/rentora/appointment-service/internal/outbox"
)

// Lifecycle event type tags, one per state transition.
const (
	TypeCreated     = "APPOINTMENT_CREATED"
	TypeConfirmed   = "APPOINTMENT_CONFIRMED"
	TypeCancelled   = "APPOINTMENT_CANCELLED"
	TypeRescheduled = "APPOINTMENT_RESCHEDULED"
	TypeCompleted   = "APPOINTMENT_COMPLETED"
	TypeUpdated     = "APPOINTMENT_UPDATED"
	TypeReminder    = "APPOINTMENT_REMINDER"
)

// Snapshot is the immutable denormalized copy of an enriched appointment
// taken at the moment of a successful transition. Consumed by external
// subscribers; never read back by this service.
type Snapshot struct {
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	EventTimestamp time.Time `json:"eventTimestamp"`

	AppointmentID   string    `json:"appointmentId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Status          string    `json:"status"`
	Type            string    `json:"type"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
	MeetingLink     string    `json:"meetingLink"`

	CancellationReason string     `json:"cancellationReason,omitempty"`
	PreviousStartTime  *time.Time `json:"previousStartTime,omitempty"`

	RequesterID           int64  `json:"requesterId"`
	RequesterUsername     string `json:"requesterUsername"`
	RequesterName         string `json:"requesterName"`
	RequesterEmail        string `json:"requesterEmail"`
	RequesterPhone        string `json:"requesterPhone"`
	RequesterFirstName    string `json:"requesterFirstName"`
	RequesterLastName     string `json:"requesterLastName"`
	RequesterProfileImage string `json:"requesterProfileImage"`

	ProviderID           int64  `json:"providerId"`
	ProviderUsername     string `json:"providerUsername"`
	ProviderName         string `json:"providerName"`
	ProviderEmail        string `json:"providerEmail"`
	ProviderPhone        string `json:"providerPhone"`
	ProviderFirstName    string `json:"providerFirstName"`
	ProviderLastName     string `json:"providerLastName"`
	ProviderProfileImage string `json:"providerProfileImage"`

	PropertyID          int64   `json:"propertyId"`
	PropertyTitle       string  `json:"propertyTitle"`
	PropertyAddress     string  `json:"propertyAddress"`
	PropertyDescription string  `json:"propertyDescription"`
	PropertyRentAmount  float64 `json:"propertyRentAmount"`
	PropertyIsRented    bool    `json:"propertyIsRented"`
	PropertyImage       string  `json:"propertyImage"`
	PropertyImage2      string  `json:"propertyImage2"`
	PropertyImage3      string  `json:"propertyImage3"`
	PropertyImage4      string  `json:"propertyImage4"`
}

// Extra carries transition-specific fields onto the snapshot.
type Extra struct {
	CancellationReason string
	PreviousStartTime  *time.Time
}

// NewSnapshot freezes an enriched appointment into an event snapshot.
func NewSnapshot(eventType string, v model.EnrichedAppointment, extra Extra) Snapshot {
	return Snapshot{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		EventTimestamp: time.Now().UTC(),

		AppointmentID:   v.ID,
		Title:           v.Title,
		Description:     v.Description,
		StartTime:       v.StartTime,
		EndTime:         v.EndDateTime,
		DurationMinutes: v.DurationMinutes,
		Status:          string(v.Status),
		Type:            string(v.Type),
		Location:        v.Location,
		Notes:           v.Notes,
		MeetingLink:     v.MeetingLink,

		CancellationReason: extra.CancellationReason,
		PreviousStartTime:  extra.PreviousStartTime,

		RequesterID:           v.RequesterID,
		RequesterUsername:     v.RequesterUsername,
		RequesterName:         v.RequesterName,
		RequesterEmail:        v.RequesterEmail,
		RequesterPhone:        v.RequesterPhone,
		RequesterFirstName:    v.RequesterFirstName,
		RequesterLastName:     v.RequesterLastName,
		RequesterProfileImage: v.RequesterProfileImage,

		ProviderID:           v.ProviderID,
		ProviderUsername:     v.ProviderUsername,
		ProviderName:         v.ProviderName,
		ProviderEmail:        v.ProviderEmail,
		ProviderPhone:        v.ProviderPhone,
		ProviderFirstName:    v.ProviderFirstName,
		ProviderLastName:     v.ProviderLastName,
		ProviderProfileImage: v.ProviderProfileImage,

		PropertyID:          v.PropertyID,
		PropertyTitle:       v.PropertyTitle,
		PropertyAddress:     v.PropertyAddress,
		PropertyDescription: v.PropertyDescription,
		PropertyRentAmount:  v.PropertyRentAmount,
		PropertyIsRented:    v.PropertyIsRented,
		PropertyImage:       v.PropertyImage,
		PropertyImage2:      v.PropertyImage2,
		PropertyImage3:      v.PropertyImage3,
		PropertyImage4:      v.PropertyImage4,
	}
}

// Emitter publishes lifecycle events. Implementations must not return
// errors for delivery problems; the contract is log-and-continue.
type Emitter interface {
	Emit(ctx context.Context, eventType string, v model.EnrichedAppointment, extra Extra)
}

// OutboxEmitter hands snapshots to the outbox table; the relay takes it
// from there. An insert failure costs the event, not the operation.
type OutboxEmitter struct {
	repo   *outbox.Repository
	logger *slog.Logger
}

func NewOutboxEmitter(repo *outbox.Repository, logger *slog.Logger) *OutboxEmitter {
	return &OutboxEmitter{repo: repo, logger: logger}
}

func (e *OutboxEmitter) Emit(ctx context.Context, eventType string, v model.EnrichedAppointment, extra Extra) {
	snap := NewSnapshot(eventType, v, extra)
	payload, err := json.Marshal(snap)
	if err != nil {
		e.logger.Error("event snapshot marshal failed", "event_type", eventType, "appointment_id", v.ID, "err", err)
		return
	}
	if err := e.repo.Insert(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   v.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		e.logger.Error("event publish failed", "event_type", eventType, "appointment_id", v.ID, "err", err)
		return
	}
	e.logger.Info("published appointment event", "event_type", eventType, "appointment_id", v.ID, "event_id", snap.EventID)
}

// NopEmitter drops every event. Useful in tests and when no broker is
// configured.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, model.EnrichedAppointment, Extra) {}
