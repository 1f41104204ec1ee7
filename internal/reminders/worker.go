// Package reminders polls for confirmed appointments approaching their
// start time and emits a reminder event for each, at most once.
package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/rentora/appointment-service/internal/events"
	"github.com/rentora/appointment-service/internal/service"
)

type Worker struct {
	svc      *service.Service
	logger   *slog.Logger
	interval time.Duration
}

type WorkerConfig struct {
	Interval time.Duration
}

func NewWorker(svc *service.Service, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	return &Worker{svc: svc, logger: logger, interval: cfg.Interval}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	due, err := w.svc.UpcomingForReminders(ctx)
	if err != nil {
		return err
	}
	for _, a := range due {
		view := w.svc.EnrichForEvent(ctx, a)
		w.svc.Emit(ctx, events.TypeReminder, view)
		if err := w.svc.MarkReminderSent(ctx, a.ID); err != nil {
			w.logger.Error("mark reminder sent failed", "appointment_id", a.ID, "err", err)
			continue
		}
		w.logger.Info("reminder emitted", "appointment_id", a.ID, "start_time", a.StartTime.UTC().Format(time.RFC3339))
	}
	return nil
}
