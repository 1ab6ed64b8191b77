package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotcal/libs/db"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/reminders"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `id::text, starts_at, duration_minutes, status, client_name, client_email, client_phone, notes,
	send_24h_at, sent_24h_at, send_1h_at, sent_1h_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.StartsAt,
		&a.DurationMinutes,
		&status,
		&a.ClientName,
		&a.ClientEmail,
		&a.ClientPhone,
		&a.Notes,
		&a.Reminders.Send24hAt,
		&a.Reminders.Sent24hAt,
		&a.Reminders.Send1hAt,
		&a.Reminders.Sent1hAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.StartsAt = a.StartsAt.UTC()
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
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

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a with a fresh id. Overlap with another non-cancelled
// appointment fails with an error satisfying IsConflict.
func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	a.ID = uuid.NewString()
	a.DurationMinutes = model.EffectiveDuration(a.DurationMinutes)
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, starts_at, ends_at, duration_minutes, status, client_name, client_email, client_phone, notes,
			 send_24h_at, sent_24h_at, send_1h_at, sent_1h_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, a.ID, a.StartsAt, a.EndsAt(), a.DurationMinutes, string(a.Status), a.ClientName, a.ClientEmail, a.ClientPhone, a.Notes,
		a.Reminders.Send24hAt, a.Reminders.Sent24hAt, a.Reminders.Send1hAt, a.Reminders.Sent1hAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

// Reschedule stores a new start, duration and the re-armed reminder fields.
func (r *AppointmentRepository) Reschedule(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	a.DurationMinutes = model.EffectiveDuration(a.DurationMinutes)
	return tx.QueryRow(ctx, `
		UPDATE appointments
		SET starts_at = $2,
			ends_at = $3,
			duration_minutes = $4,
			send_24h_at = $5,
			sent_24h_at = $6,
			send_1h_at = $7,
			sent_1h_at = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.StartsAt, a.EndsAt(), a.DurationMinutes,
		a.Reminders.Send24hAt, a.Reminders.Sent24hAt, a.Reminders.Send1hAt, a.Reminders.Sent1hAt,
	).Scan(&a.UpdatedAt)
}

func (r *AppointmentRepository) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(status)).Scan(&updatedAt)
	return updatedAt, err
}

// ListBlocking returns non-cancelled appointments overlapping [from, to).
func (r *AppointmentRepository) ListBlocking(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'CANCELLED'
			AND starts_at < $2
			AND ends_at > $1
		ORDER BY starts_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// ListRange returns appointments starting in [from, to), optionally limited to
// the given statuses.
func (r *AppointmentRepository) ListRange(ctx context.Context, from, to time.Time, statuses ...model.Status) ([]model.Appointment, error) {
	filter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		filter = append(filter, string(s))
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE starts_at >= $1
			AND starts_at < $2
			AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY starts_at ASC
		LIMIT 1000
	`, from, to, filter)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func reminderColumns(kind reminders.Kind) (send, sent string, err error) {
	switch kind {
	case reminders.Kind24h:
		return "send_24h_at", "sent_24h_at", nil
	case reminders.Kind1h:
		return "send_1h_at", "sent_1h_at", nil
	}
	return "", "", fmt.Errorf("unknown reminder kind %q", kind)
}

// ClaimDue opens a transaction holding row locks on up to limit due reminders
// of kind. Rows locked by a concurrent window are skipped.
func (r *AppointmentRepository) ClaimDue(ctx context.Context, kind reminders.Kind, now time.Time, limit int) (reminders.Batch, error) {
	sendCol, sentCol, err := reminderColumns(kind)
	if err != nil {
		return nil, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'CONFIRMED'
			AND `+sendCol+` <= $1
			AND `+sentCol+` IS NULL
		ORDER BY `+sendCol+` ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	items, err := collectAppointments(rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &dueBatch{tx: tx, items: items, sentCol: sentCol}, nil
}

type dueBatch struct {
	tx      pgx.Tx
	items   []model.Appointment
	sentCol string
}

func (b *dueBatch) Items() []model.Appointment { return b.items }

func (b *dueBatch) MarkSent(ctx context.Context, appointmentID string, at time.Time) (bool, error) {
	tag, err := b.tx.Exec(ctx, `
		UPDATE appointments
		SET `+b.sentCol+` = $2, updated_at = now()
		WHERE id = $1 AND `+b.sentCol+` IS NULL
	`, appointmentID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (b *dueBatch) Commit(ctx context.Context) error { return b.tx.Commit(ctx) }
func (b *dueBatch) Rollback(ctx context.Context) error { return b.tx.Rollback(ctx) }
