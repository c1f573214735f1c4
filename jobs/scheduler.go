package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/services"
)

const DefaultCronInterval = 24 * time.Hour

// FanOut enqueues one job per active tenant.
type FanOut interface {
	EnqueueAllTenants(ctx context.Context, trigger models.TriggerSource, requestID func(models.TenantID) string) (*services.FanOutResult, error)
}

// Scheduler enqueues cron recomputes. The request id is derived from the interval
// window, so several instances ticking in the same window create one job per tenant.
type Scheduler struct {
	fanOut   FanOut
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(fanOut FanOut, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCronInterval
	}
	return &Scheduler{fanOut: fanOut, interval: interval, logger: logger, now: time.Now}
}

func CronRequestID(tenantID models.TenantID, windowStart time.Time) string {
	return fmt.Sprintf("cron:%d:%d", tenantID, windowStart.Unix())
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("Stats cron scheduler started", slog.Duration("interval", s.interval))

	// Run once immediately at startup, then on ticker
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stats cron scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Trigger(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "Scheduler: stats fan-out failed", slog.Any("error", err))
	}
}

func (s *Scheduler) Trigger(ctx context.Context) (*services.FanOutResult, error) {
	window := s.now().UTC().Truncate(s.interval)
	return s.fanOut.EnqueueAllTenants(ctx, models.TriggerCron, func(tenantID models.TenantID) string {
		return CronRequestID(tenantID, window)
	})
}
