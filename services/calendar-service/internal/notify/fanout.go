package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Channel is a named notifier taking part in a fan-out.
type Channel struct {
	Name     string
	Notifier Notifier
}

// Fanout sends through every channel. It succeeds when at least one channel
// delivered; channels without a recipient do not count either way.
type Fanout struct {
	channels []Channel
	logger   *slog.Logger
}

func NewFanout(logger *slog.Logger, channels ...Channel) *Fanout {
	return &Fanout{channels: channels, logger: logger}
}

func (f *Fanout) Len() int { return len(f.channels) }

func (f *Fanout) Notify(ctx context.Context, r Reminder) error {
	delivered := 0
	var errs []error
	for _, ch := range f.channels {
		err := ch.Notifier.Notify(ctx, r)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrNoRecipient):
		default:
			f.logger.Warn("reminder channel failed", "channel", ch.Name, "appointment_id", r.AppointmentID, "kind", r.Kind, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}
	if delivered > 0 {
		return nil
	}
	if len(errs) == 0 {
		return ErrNoRecipient
	}
	return errors.Join(errs...)
}
