// Package enrichment composes bare appointment records with best-effort
// user and property data. Directory failures degrade a record's enrichment
// to deterministic placeholders; they never fail the read itself.
package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rentora/appointment-service/internal/directory"
	"github.com/rentora/appointment-service/internal/model"
)

const (
	defaultAvatar        = "default-avatar.png"
	defaultPropertyImage = "default-property-image.jpg"
	missingAddress       = "Address not available"
)

type Config struct {
	// Lead times gate the canCancel/canReschedule flags on top of the
	// status rule. Zero means status-only.
	CancelLead     time.Duration
	RescheduleLead time.Duration
}

type Enricher struct {
	users      directory.UserDirectory
	properties directory.PropertyDirectory
	logger     *slog.Logger
	cfg        Config

	// now is swappable for tests.
	now func() time.Time
}

func New(users directory.UserDirectory, properties directory.PropertyDirectory, logger *slog.Logger, cfg Config) *Enricher {
	return &Enricher{
		users:      users,
		properties: properties,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock fixes the enricher's notion of now. Test hook.
func (e *Enricher) WithClock(now func() time.Time) *Enricher {
	e.now = now
	return e
}

// Enrich builds the enriched view of a single appointment. Every directory
// call is guarded independently; on failure the corresponding snapshot is
// synthesized from the ids the appointment already carries.
func (e *Enricher) Enrich(ctx context.Context, a model.Appointment) model.EnrichedAppointment {
	requester := e.lookupUser(ctx, a.RequesterID)
	provider := e.lookupUser(ctx, a.ProviderID)
	property := e.lookupProperty(ctx, a.PropertyID)
	return e.Merge(a, requester, provider, property)
}

// EnrichAll enriches a batch, one record at a time. A failure on one record
// never affects the others.
func (e *Enricher) EnrichAll(ctx context.Context, appts []model.Appointment) []model.EnrichedAppointment {
	out := make([]model.EnrichedAppointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, e.Enrich(ctx, a))
	}
	return out
}

// EnrichAllWithProperty is the bulk "with details" path for a single
// property: the property is fetched once and shared across every record,
// while user lookups are still issued per record.
func (e *Enricher) EnrichAllWithProperty(ctx context.Context, appts []model.Appointment, propertyID int64) []model.EnrichedAppointment {
	property := e.lookupProperty(ctx, propertyID)
	out := make([]model.EnrichedAppointment, 0, len(appts))
	for _, a := range appts {
		requester := e.lookupUser(ctx, a.RequesterID)
		provider := e.lookupUser(ctx, a.ProviderID)
		out = append(out, e.Merge(a, requester, provider, property))
	}
	return out
}

func (e *Enricher) lookupUser(ctx context.Context, id int64) model.User {
	u, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("user lookup failed, synthesizing fallback", "user_id", id, "err", err)
		}
		return FallbackUser(id)
	}
	return u
}

func (e *Enricher) lookupProperty(ctx context.Context, id int64) model.Property {
	p, err := e.properties.GetPropertyByID(ctx, id)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("property lookup failed, synthesizing fallback", "property_id", id, "err", err)
		}
		return FallbackProperty(id)
	}
	return p
}

// Merge is the pure composition step: denormalized snapshot fields plus the
// derived calendar fields. The appointment's own location substitutes for a
// missing property address so the view always has somewhere to point at.
func (e *Enricher) Merge(a model.Appointment, requester, provider model.User, property model.Property) model.EnrichedAppointment {
	now := e.now()
	v := model.EnrichedAppointment{Appointment: a}

	v.RequesterName = requester.DisplayName()
	v.RequesterUsername = requester.Username
	v.RequesterEmail = requester.Email
	v.RequesterPhone = requester.PhoneNumber
	v.RequesterFirstName = firstNameOf(requester)
	v.RequesterLastName = requester.LastName
	v.RequesterProfileImage = orDefault(requester.ProfileImage, defaultAvatar)

	v.ProviderName = provider.DisplayName()
	v.ProviderUsername = provider.Username
	v.ProviderEmail = provider.Email
	v.ProviderPhone = provider.PhoneNumber
	v.ProviderFirstName = firstNameOf(provider)
	v.ProviderLastName = provider.LastName
	v.ProviderProfileImage = orDefault(provider.ProfileImage, defaultAvatar)

	v.PropertyTitle = property.Title
	v.PropertyDescription = property.Description
	v.PropertyRentAmount = property.RentAmount
	v.PropertyIsRented = property.IsRented
	v.PropertyImage = property.Image
	v.PropertyImage2 = property.Image2
	v.PropertyImage3 = property.Image3
	v.PropertyImage4 = property.Image4

	address := strings.TrimSpace(property.Address)
	if address == "" || address == missingAddress {
		address = a.Location
	}
	v.PropertyAddress = address

	v.EndDateTime = a.EndTime()
	v.DaysUntilAppointment = a.DaysUntil(now)
	v.CanCancelNow = a.CanCancel(now, e.cfg.CancelLead)
	v.CanRescheduleNow = a.CanReschedule(now, e.cfg.RescheduleLead)
	return v
}

func firstNameOf(u model.User) string {
	if strings.TrimSpace(u.FirstName) != "" {
		return u.FirstName
	}
	return u.Username
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// FallbackUser synthesizes a deterministic user record from an id, so the
// enriched view stays structurally complete when the directory is down.
func FallbackUser(id int64) model.User {
	return model.User{
		ID:        id,
		Username:  fmt.Sprintf("User%d", id),
		FirstName: "User",
		LastName:  fmt.Sprintf("%d", id),
		Email:     fmt.Sprintf("user%d@example.com", id),
	}
}

// FallbackProperty synthesizes a placeholder property record keyed by id.
func FallbackProperty(id int64) model.Property {
	return model.Property{
		ID:          id,
		Title:       fmt.Sprintf("Property #%d", id),
		Address:     missingAddress,
		Description: "Description not available",
		Image:       defaultPropertyImage,
		Image2:      "default-property-image-2.jpg",
		Image3:      "default-property-image-3.jpg",
	}
}
