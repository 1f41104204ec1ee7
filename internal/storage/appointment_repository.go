package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rentora/appointment-service/internal/model"
	"github.com/rentora/appointment-service/libs/db"
)

// ErrNotFound means the appointment does not exist. The Store contract is
// expressed in terms of this sentinel so callers never depend on driver
// error values.
var ErrNotFound = errors.New("storage: appointment not found")

const appointmentColumns = `id::text, title, description, start_time, duration_minutes, status, type,
	property_id, requester_id, provider_id, location, notes, meeting_link,
	cancellation_reason, is_recurring, reminder_sent, confirmation_token, created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// Create inserts the appointment and returns it with store-assigned fields.
// Overlap with an active appointment for the same provider surfaces through
// IsConflict; an identical requester/provider/property/start tuple through
// IsDuplicate.
func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(title, description, start_time, duration_minutes, status, type,
			 property_id, requester_id, provider_id, location, notes, meeting_link,
			 is_recurring, reminder_sent, confirmation_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+appointmentColumns+`
	`, a.Title, a.Description, a.StartTime, a.DurationMinutes, a.Status, a.Type,
		a.PropertyID, a.RequesterID, a.ProviderID, a.Location, a.Notes, a.MeetingLink,
		a.IsRecurring, a.ReminderSent, a.ConfirmationToken)
	return scanAppointment(row)
}

// Update persists every mutable field and bumps updated_at. The exclusion
// constraint re-validates the provider window, so a reschedule that races a
// concurrent booking fails with IsConflict instead of double-booking.
func (r *AppointmentRepository) Update(ctx context.Context, a *model.Appointment) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET title = $2,
			description = $3,
			start_time = $4,
			duration_minutes = $5,
			status = $6,
			location = $7,
			notes = $8,
			meeting_link = $9,
			cancellation_reason = $10,
			reminder_sent = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, a.Title, a.Description, a.StartTime, a.DurationMinutes, a.Status,
		a.Location, a.Notes, a.MeetingLink, a.CancellationReason, a.ReminderSent)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) FindByConfirmationToken(ctx context.Context, token string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE confirmation_token = $1
	`, token)
	return scanAppointment(row)
}

func (r *AppointmentRepository) FindByRequester(ctx context.Context, requesterID int64) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1
		ORDER BY start_time
	`, requesterID)
}

func (r *AppointmentRepository) FindByProvider(ctx context.Context, providerID int64) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time
	`, providerID)
}

func (r *AppointmentRepository) FindByProperty(ctx context.Context, propertyID int64) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE property_id = $1
		ORDER BY start_time
	`, propertyID)
}

// FindByUser returns appointments where the user is requester or provider.
func (r *AppointmentRepository) FindByUser(ctx context.Context, userID int64) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY start_time
	`, userID)
}

func (r *AppointmentRepository) FindByStatus(ctx context.Context, status model.Status) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY start_time
	`, status)
}

func (r *AppointmentRepository) FindByType(ctx context.Context, t model.Type) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE type = $1
		ORDER BY start_time
	`, t)
}

func (r *AppointmentRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= $1 AND start_time <= $2
		ORDER BY start_time
	`, from, to)
}

func (r *AppointmentRepository) FindAll(ctx context.Context) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT ` + appointmentColumns + `
		FROM appointments
		ORDER BY start_time
	`)
}

// FindProviderBooked returns the provider's active appointments whose windows
// intersect [from, to). Cancelled and no-show rows never block a slot.
func (r *AppointmentRepository) FindProviderBooked(ctx context.Context, providerID int64, from, to time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND status NOT IN ('CANCELLED', 'NO_SHOW')
			AND start_time < $3
			AND start_time + make_interval(mins => duration_minutes) > $2
		ORDER BY start_time
	`, providerID, from, to)
}

func (r *AppointmentRepository) ExistsDuplicate(ctx context.Context, requesterID, providerID, propertyID int64, start time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE requester_id = $1 AND provider_id = $2 AND property_id = $3 AND start_time = $4
		)
	`, requesterID, providerID, propertyID, start).Scan(&exists)
	return exists, err
}

// FindPendingReminders returns appointments in the given status starting at
// or before cutoff whose reminder has not been sent yet.
func (r *AppointmentRepository) FindPendingReminders(ctx context.Context, status model.Status, cutoff time.Time) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1 AND start_time <= $2 AND reminder_sent = false
		ORDER BY start_time
	`, status, cutoff)
}

func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.Type,
		&a.PropertyID,
		&a.RequesterID,
		&a.ProviderID,
		&a.Location,
		&a.Notes,
		&a.MeetingLink,
		&a.CancellationReason,
		&a.IsRecurring,
		&a.ReminderSent,
		&a.ConfirmationToken,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// IsConflict matches the provider-overlap exclusion constraint.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsDuplicate matches the requester/provider/property/start dedupe index.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_dedupe"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
