package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	otelx "github.com/md-rashed-zaman/slotcal/libs/otel"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/notify"
)

// ErrDisabled is returned by Run while the kill-switch is off.
var ErrDisabled = errors.New("reminder dispatch is disabled")

// Batch is one claimed window of due reminders. Items are CONFIRMED
// appointments whose send time of the batch kind has passed and whose sent
// marker is unset, oldest send time first.
type Batch interface {
	Items() []model.Appointment
	// MarkSent sets the sent marker only if it is still unset and reports
	// whether this call set it.
	MarkSent(ctx context.Context, appointmentID string, at time.Time) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	ClaimDue(ctx context.Context, kind Kind, now time.Time, limit int) (Batch, error)
}

// Switch is the global enable flag, safe for concurrent use.
type Switch struct {
	on atomic.Bool
}

func NewSwitch(enabled bool) *Switch {
	s := &Switch{}
	s.on.Store(enabled)
	return s
}

func (s *Switch) Enabled() bool { return s.on.Load() }
func (s *Switch) Set(enabled bool) { s.on.Store(enabled) }

type Summary struct {
	Kind    Kind `json:"kind"`
	Due     int  `json:"due"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

type DispatcherConfig struct {
	BatchLimit     int
	SendTimeout    time.Duration
	SendsPerSecond float64
	Location       *time.Location
	Now            func() time.Time
}

type Dispatcher struct {
	store    Store
	notifier notify.Notifier
	logger   *slog.Logger
	enabled  *Switch
	limiter  *rate.Limiter
	cfg      DispatcherConfig
	tracer   trace.Tracer
}

func NewDispatcher(store Store, notifier notify.Notifier, enabled *Switch, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if enabled == nil {
		enabled = NewSwitch(true)
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		logger:   logger,
		enabled:  enabled,
		cfg:      cfg,
		tracer:   otelx.Tracer("calendar-service/reminders"),
	}
	if cfg.SendsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1)
	}
	return d
}

func (d *Dispatcher) Switch() *Switch { return d.enabled }

// Run checks the kill-switch once and then processes each kind in turn. A
// failing window is logged and does not stop the remaining kinds.
func (d *Dispatcher) Run(ctx context.Context, kinds ...Kind) ([]Summary, error) {
	if !d.enabled.Enabled() {
		return nil, ErrDisabled
	}
	if len(kinds) == 0 {
		kinds = Kinds
	}
	out := make([]Summary, 0, len(kinds))
	var errs []error
	for _, kind := range kinds {
		s, err := d.ProcessWindow(ctx, kind)
		if err != nil {
			d.logger.Error("reminder window failed", "err", err, "kind", kind)
			errs = append(errs, err)
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// ProcessWindow sends every due and unsent reminder of kind, up to the batch
// limit. A failed send is logged and leaves the reminder unmarked so the next
// window retries it. Cancelling ctx does not interrupt a claimed window: every
// delivered reminder is marked and the batch committed.
func (d *Dispatcher) ProcessWindow(ctx context.Context, kind Kind) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := d.tracer.Start(ctx, "reminders.dispatch", trace.WithAttributes(attribute.String("reminder.kind", string(kind))))
	defer span.End()

	summary := Summary{Kind: kind}
	now := d.cfg.Now().UTC()

	batch, err := d.store.ClaimDue(ctx, kind, now, d.cfg.BatchLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return summary, fmt.Errorf("claim %s reminders: %w", kind, err)
	}
	defer func() { _ = batch.Rollback(ctx) }()

	items := batch.Items()
	summary.Due = len(items)
	for _, appt := range items {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				summary.Failed++
				continue
			}
		}
		// No recipient on any channel: nothing to retry, mark and skip.
		err := d.send(ctx, kind, appt)
		unreachable := errors.Is(err, notify.ErrNoRecipient)
		if err != nil && !unreachable {
			summary.Failed++
			d.logger.Error("reminder send failed", "err", err, "appointment_id", appt.ID, "kind", kind)
			continue
		}
		marked, err := batch.MarkSent(ctx, appt.ID, d.cfg.Now().UTC())
		if err != nil {
			summary.Failed++
			d.logger.Error("reminder mark failed", "err", err, "appointment_id", appt.ID, "kind", kind)
			continue
		}
		if !marked || unreachable {
			if unreachable {
				d.logger.Warn("reminder has no recipient", "appointment_id", appt.ID, "kind", kind)
			}
			summary.Skipped++
			continue
		}
		summary.Sent++
	}

	if err := batch.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return summary, fmt.Errorf("commit %s reminders: %w", kind, err)
	}
	span.SetAttributes(
		attribute.Int("reminder.due", summary.Due),
		attribute.Int("reminder.sent", summary.Sent),
		attribute.Int("reminder.failed", summary.Failed),
	)
	if summary.Due > 0 {
		d.logger.Info("reminder window processed", "kind", kind, "due", summary.Due, "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
	}
	return summary, nil
}

func (d *Dispatcher) send(ctx context.Context, kind Kind, appt model.Appointment) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.notifier.Notify(sendCtx, notify.Reminder{
		AppointmentID:   appt.ID,
		Kind:            string(kind),
		StartsAt:        appt.StartsAt,
		DurationMinutes: model.EffectiveDuration(appt.DurationMinutes),
		Location:        d.cfg.Location,
		ClientName:      appt.ClientName,
		ClientEmail:     appt.ClientEmail,
		ClientPhone:     appt.ClientPhone,
		Notes:           appt.Notes,
	})
}
