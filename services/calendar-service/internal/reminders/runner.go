package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner drives the dispatcher from a cron schedule. A tick that is still
// running when the next one fires makes the next one skip.
type Runner struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewRunner(d *Dispatcher, spec string, logger *slog.Logger) (*Runner, error) {
	if spec == "" {
		spec = "@every 5m"
	}
	cl := cronLogger{logger: logger}
	r := &Runner{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		dispatcher: d,
		logger:     logger,
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("invalid dispatcher schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Runner) tick() {
	_, err := r.dispatcher.Run(context.Background())
	if errors.Is(err, ErrDisabled) {
		r.logger.Debug("reminder dispatch skipped, disabled")
	}
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running tick to finish.
func (r *Runner) Run(ctx context.Context) {
	r.cron.Start()
	r.logger.Info("reminder dispatcher started", "entries", len(r.cron.Entries()))
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("reminder dispatcher stopped")
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
