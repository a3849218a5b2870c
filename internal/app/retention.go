package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// FinishedJobPurger deletes terminal feedback jobs past retention.
type FinishedJobPurger interface {
	PurgeFinished(ctx domain.Context, retentionDays int) (int64, error)
}

// RetentionJob purges finished feedback jobs on a cron schedule.
type RetentionJob struct {
	purger   FinishedJobPurger
	days     int
	schedule string
	cron     *cron.Cron
}

// NewRetentionJob returns nil when retention is disabled.
func NewRetentionJob(p FinishedJobPurger, days int, schedule string) *RetentionJob {
	if p == nil || days <= 0 {
		return nil
	}
	if schedule == "" {
		schedule = "@daily"
	}
	return &RetentionJob{purger: p, days: days, schedule: schedule, cron: cron.New()}
}

// Start schedules the purge and blocks until ctx is done.
func (j *RetentionJob) Start(ctx context.Context) error {
	if j == nil {
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("op=app.retention: schedule %q: %w", j.schedule, err)
	}
	slog.Info("retention purge scheduled", slog.String("schedule", j.schedule), slog.Int("retention_days", j.days))
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}

// RunOnce purges immediately.
func (j *RetentionJob) RunOnce(ctx context.Context) {
	n, err := j.purger.PurgeFinished(ctx, j.days)
	if err != nil {
		slog.Error("retention purge failed", slog.Any("error", err))
		return
	}
	slog.Info("retention purge completed", slog.Int64("deleted", n))
}
