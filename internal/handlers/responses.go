package handlers

import (
	"time"

	"github.com/rentora/appointment-service/internal/model"
)

type appointmentResponse struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	DurationMinutes    int       `json:"durationMinutes"`
	Status             string    `json:"status"`
	Type               string    `json:"type"`
	PropertyID         int64     `json:"propertyId"`
	RequesterID        int64     `json:"requesterId"`
	ProviderID         int64     `json:"providerId"`
	Location           string    `json:"location,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	MeetingLink        string    `json:"meetingLink,omitempty"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	IsRecurring        bool      `json:"isRecurring"`
	ReminderSent       bool      `json:"reminderSent"`
	ConfirmationToken  string    `json:"confirmationToken,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func newAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                 a.ID,
		Title:              a.Title,
		Description:        a.Description,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime(),
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		Type:               string(a.Type),
		PropertyID:         a.PropertyID,
		RequesterID:        a.RequesterID,
		ProviderID:         a.ProviderID,
		Location:           a.Location,
		Notes:              a.Notes,
		MeetingLink:        a.MeetingLink,
		CancellationReason: a.CancellationReason,
		IsRecurring:        a.IsRecurring,
		ReminderSent:       a.ReminderSent,
		ConfirmationToken:  a.ConfirmationToken,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func appointmentResponses(appts []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, newAppointmentResponse(a))
	}
	return out
}

type enrichedResponse struct {
	appointmentResponse

	RequesterName         string `json:"requesterName"`
	RequesterUsername     string `json:"requesterUsername"`
	RequesterEmail        string `json:"requesterEmail"`
	RequesterPhone        string `json:"requesterPhone,omitempty"`
	RequesterFirstName    string `json:"requesterFirstName"`
	RequesterLastName     string `json:"requesterLastName"`
	RequesterProfileImage string `json:"requesterProfileImage"`

	ProviderName         string `json:"providerName"`
	ProviderUsername     string `json:"providerUsername"`
	ProviderEmail        string `json:"providerEmail"`
	ProviderPhone        string `json:"providerPhone,omitempty"`
	ProviderFirstName    string `json:"providerFirstName"`
	ProviderLastName     string `json:"providerLastName"`
	ProviderProfileImage string `json:"providerProfileImage"`

	PropertyTitle       string  `json:"propertyTitle"`
	PropertyDescription string  `json:"propertyDescription"`
	PropertyAddress     string  `json:"propertyAddress"`
	PropertyRentAmount  float64 `json:"propertyRentAmount"`
	PropertyIsRented    bool    `json:"propertyIsRented"`
	PropertyImage       string  `json:"propertyImage"`
	PropertyImage2      string  `json:"propertyImage2,omitempty"`
	PropertyImage3      string  `json:"propertyImage3,omitempty"`
	PropertyImage4      string  `json:"propertyImage4,omitempty"`

	DaysUntilAppointment int  `json:"daysUntilAppointment"`
	CanCancel            bool `json:"canCancel"`
	CanReschedule        bool `json:"canReschedule"`
}

func viewResponse(v model.EnrichedAppointment) enrichedResponse {
	base := newAppointmentResponse(v.Appointment)
	base.EndTime = v.EndDateTime
	return enrichedResponse{
		appointmentResponse: base,

		RequesterName:         v.RequesterName,
		RequesterUsername:     v.RequesterUsername,
		RequesterEmail:        v.RequesterEmail,
		RequesterPhone:        v.RequesterPhone,
		RequesterFirstName:    v.RequesterFirstName,
		RequesterLastName:     v.RequesterLastName,
		RequesterProfileImage: v.RequesterProfileImage,

		ProviderName:         v.ProviderName,
		ProviderUsername:     v.ProviderUsername,
		ProviderEmail:        v.ProviderEmail,
		ProviderPhone:        v.ProviderPhone,
		ProviderFirstName:    v.ProviderFirstName,
		ProviderLastName:     v.ProviderLastName,
		ProviderProfileImage: v.ProviderProfileImage,

		PropertyTitle:       v.PropertyTitle,
		PropertyDescription: v.PropertyDescription,
		PropertyAddress:     v.PropertyAddress,
		PropertyRentAmount:  v.PropertyRentAmount,
		PropertyIsRented:    v.PropertyIsRented,
		PropertyImage:       v.PropertyImage,
		PropertyImage2:      v.PropertyImage2,
		PropertyImage3:      v.PropertyImage3,
		PropertyImage4:      v.PropertyImage4,

		DaysUntilAppointment: v.DaysUntilAppointment,
		CanCancel:            v.CanCancelNow,
		CanReschedule:        v.CanRescheduleNow,
	}
}

func viewResponses(views []model.EnrichedAppointment) []enrichedResponse {
	out := make([]enrichedResponse, 0, len(views))
	for _, v := range views {
		out = append(out, viewResponse(v))
	}
	return out
}
