package model

import (
	"time"
)

// Status is the appointment lifecycle state. Only the transitions implemented
// by the service layer are legal; the store never sees any other value.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
)

// Type categorises what the appointment is for.
type Type string

const (
	TypeViewing     Type = "VIEWING"
	TypeMaintenance Type = "MAINTENANCE"
	TypeInspection  Type = "INSPECTION"
	TypeHandover    Type = "HANDOVER"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func ValidType(t Type) bool {
	switch t {
	case TypeViewing, TypeMaintenance, TypeInspection, TypeHandover:
		return true
	}
	return false
}

// Active reports whether a status occupies the provider's calendar.
// Cancelled and no-show appointments never block a time window.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Terminal reports whether the status permits no further transitions
// (markNoShow is deliberately exempt from this check).
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID                 string
	Title              string
	Description        string
	StartTime          time.Time
	DurationMinutes    int
	Status             Status
	Type               Type
	PropertyID         int64
	RequesterID        int64
	ProviderID         int64
	Location           string
	Notes              string
	MeetingLink        string
	CancellationReason string
	IsRecurring        bool
	ReminderSent       bool
	ConfirmationToken  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndTime is derived, never stored.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// DaysUntil is the whole-day difference between now and the start time.
// Negative for past appointments.
func (a *Appointment) DaysUntil(now time.Time) int {
	return int(a.StartTime.Sub(now).Hours() / 24)
}

// CanCancel reports whether a cancel command would pass its guard.
// A non-zero lead requires the start time to be at least that far away,
// reproducing the stricter client-facing rule when configured.
func (a *Appointment) CanCancel(now time.Time, lead time.Duration) bool {
	if a.Status == StatusCancelled || a.Status == StatusCompleted || a.Status == StatusNoShow {
		return false
	}
	if lead > 0 && !a.StartTime.After(now.Add(lead)) {
		return false
	}
	return true
}

// CanReschedule mirrors CanCancel for the reschedule guard.
func (a *Appointment) CanReschedule(now time.Time, lead time.Duration) bool {
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return false
	}
	if lead > 0 && !a.StartTime.After(now.Add(lead)) {
		return false
	}
	return true
}

// User is a directory record owned by the user service; this service only
// ever reads it.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	FullName     string
	Email        string
	PhoneNumber  string
	ProfileImage string
}

// DisplayName composes a human-readable name, falling back to the username
// when the directory record carries no first name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	first := u.FirstName
	if first == "" {
		first = u.Username
	}
	name := first
	if u.LastName != "" {
		name = first + " " + u.LastName
	}
	return name
}

// Property is a directory record owned by the property service.
type Property struct {
	ID          int64
	Title       string
	Description string
	Address     string
	RentAmount  float64
	IsRented    bool
	Image       string
	Image2      string
	Image3      string
	Image4      string
}

// EnrichedAppointment is the read-only composition of an appointment with
// denormalized requester/provider/property snapshots. It is rebuilt on every
// read and is best-effort: lookup failures leave synthesized placeholders.
type EnrichedAppointment struct {
	Appointment

	RequesterName         string
	RequesterUsername     string
	RequesterEmail        string
	RequesterPhone        string
	RequesterFirstName    string
	RequesterLastName     string
	RequesterProfileImage string

	ProviderName         string
	ProviderUsername     string
	ProviderEmail        string
	ProviderPhone        string
	ProviderFirstName    string
	ProviderLastName     string
	ProviderProfileImage string

	PropertyTitle       string
	PropertyDescription string
	PropertyAddress     string
	PropertyRentAmount  float64
	PropertyIsRented    bool
	PropertyImage       string
	PropertyImage2      string
	PropertyImage3      string
	PropertyImage4      string

	EndDateTime          time.Time
	DaysUntilAppointment int
	CanCancelNow         bool
	CanRescheduleNow     bool
}

// Statistics summarises a user's appointment history, counting appointments
// where the user is either requester or provider.
type Statistics struct {
	UserID    int64
	Total     int
	Completed int
	Cancelled int
	Upcoming  int
}
