// Package booking owns the appointment write path: create, reschedule and
// status changes, each arming reminders and recording an outbox event in the
// same transaction.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/outbox"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/reminders"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/storage"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrSlotUnavailable   = errors.New("requested time is not available")
	ErrOverlap           = errors.New("time slot already booked")
	ErrInvalidTransition = errors.New("status change not allowed")
)

// ReplayError carries a stored failure for a repeated idempotency key.
type ReplayError struct {
	StatusCode int
	Body       []byte
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replayed response with status %d", e.StatusCode)
}

type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	Reschedule(ctx context.Context, tx pgx.Tx, a *model.Appointment) error
	SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error
}

// Availability is the advisory check run before a public booking.
type Availability interface {
	Offers(ctx context.Context, start time.Time, durationMinutes int, excludeID string) (bool, error)
	Location(ctx context.Context) (*time.Location, error)
}

type Events interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Service struct {
	store  Store
	avail  Availability
	events Events
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, avail Availability, events Events, logger *slog.Logger) *Service {
	return &Service{store: store, avail: avail, events: events, logger: logger, now: time.Now}
}

type Request struct {
	StartsAt        time.Time
	DurationMinutes int
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	Notes           string
}

// Book creates a PENDING appointment when start is currently offered. The
// exclusion constraint in the store is the final guard against a concurrent
// booking of the same time. A non-empty idempotencyKey makes retries return
// the original outcome.
func (s *Service) Book(ctx context.Context, req Request, idempotencyKey string) (model.Appointment, bool, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		rec, exists, err := s.store.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			return model.Appointment{}, false, fmt.Errorf("lock idempotency key: %w", err)
		}
		if exists && rec.AppointmentID != "" {
			a, err := s.store.GetForUpdate(ctx, tx, rec.AppointmentID)
			if err != nil {
				return model.Appointment{}, false, fmt.Errorf("load replayed appointment: %w", err)
			}
			return a, true, tx.Commit(ctx)
		}
		if exists && rec.StatusCode > 0 {
			return model.Appointment{}, true, &ReplayError{StatusCode: rec.StatusCode, Body: rec.ResponsePayload}
		}
	}

	ok, err := s.avail.Offers(ctx, req.StartsAt, req.DurationMinutes, "")
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("availability check: %w", err)
	}
	if !ok {
		if idempotencyKey != "" {
			s.finalizeFailure(ctx, tx, idempotencyKey, http.StatusUnprocessableEntity, ErrSlotUnavailable)
		}
		return model.Appointment{}, false, ErrSlotUnavailable
	}

	loc, err := s.avail.Location(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	a := model.Appointment{
		StartsAt:        req.StartsAt.UTC(),
		DurationMinutes: model.EffectiveDuration(req.DurationMinutes),
		Status:          model.StatusPending,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		Notes:           req.Notes,
	}
	reminders.Arm(&a, loc)

	if err := s.store.Create(ctx, tx, &a); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, false, ErrOverlap
		}
		return model.Appointment{}, false, fmt.Errorf("create appointment: %w", err)
	}
	if err := s.record(ctx, tx, outbox.AppointmentRequested, a, nil); err != nil {
		return model.Appointment{}, false, err
	}
	if idempotencyKey != "" {
		if err := s.store.FinalizeIdempotency(ctx, tx, idempotencyKey, a.ID, http.StatusCreated, nil); err != nil {
			return model.Appointment{}, false, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, err
	}
	s.logger.Info("appointment requested", "appointment_id", a.ID, "starts_at", a.StartsAt)
	return a, false, nil
}

// finalizeFailure stores a rejected attempt so a retry with the same key gets
// the same answer. It commits tx.
func (s *Service) finalizeFailure(ctx context.Context, tx pgx.Tx, key string, status int, cause error) {
	body, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := s.store.FinalizeIdempotency(ctx, tx, key, "", status, body); err != nil {
		s.logger.Warn("idempotency finalize failed", "err", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Warn("idempotency commit failed", "err", err)
	}
}

// Reschedule moves an appointment, re-arming both reminders when the start
// changes. Operators may place it outside offered slots; only true overlaps
// are refused.
func (s *Service) Reschedule(ctx context.Context, id string, startsAt time.Time, durationMinutes int) (model.Appointment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prev, err := s.load(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if prev.Status == model.StatusCancelled {
		return model.Appointment{}, ErrInvalidTransition
	}
	loc, err := s.avail.Location(ctx)
	if err != nil {
		return model.Appointment{}, err
	}

	a := prev
	a.StartsAt = startsAt.UTC()
	if durationMinutes > 0 {
		a.DurationMinutes = durationMinutes
	}
	if !a.StartsAt.Equal(prev.StartsAt) {
		reminders.Arm(&a, loc)
	}
	if err := s.store.Reschedule(ctx, tx, &a); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, ErrOverlap
		}
		return model.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}
	if err := s.record(ctx, tx, outbox.AppointmentRescheduled, a, &prev); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment rescheduled", "appointment_id", a.ID, "starts_at", a.StartsAt, "previous_starts_at", prev.StartsAt)
	return a, nil
}

// SetStatus applies an operator decision or a cancellation. Repeating the
// current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prev, err := s.load(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if prev.Status == status {
		return prev, nil
	}
	if !model.CanTransition(prev.Status, status) {
		return model.Appointment{}, ErrInvalidTransition
	}

	a := prev
	a.Status = status
	updatedAt, err := s.store.SetStatus(ctx, tx, id, status)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("set status: %w", err)
	}
	a.UpdatedAt = updatedAt
	if err := s.record(ctx, tx, outbox.AppointmentStatusChanged, a, &prev); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment status changed", "appointment_id", id, "status", status, "previous_status", prev.Status)
	return a, nil
}

func (s *Service) load(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	a, err := s.store.GetForUpdate(ctx, tx, id)
	if storage.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	return a, nil
}

func (s *Service) record(ctx context.Context, tx pgx.Tx, eventType string, a model.Appointment, prev *model.Appointment) error {
	if s.events == nil {
		return nil
	}
	evt, err := outbox.AppointmentEvent(eventType, a, prev, s.now())
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}
