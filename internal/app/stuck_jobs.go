package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// StaleJobFailer fails feedback jobs stuck in processing.
type StaleJobFailer interface {
	FailStale(ctx domain.Context, staleAfter time.Duration) (int64, error)
}

// StuckJobSweeper periodically fails jobs whose worker died mid-pipeline.
type StuckJobSweeper struct {
	jobs       StaleJobFailer
	staleAfter time.Duration
	interval   time.Duration
}

func NewStuckJobSweeper(jobs StaleJobFailer, staleAfter, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{jobs: jobs, staleAfter: staleAfter, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) {
	ctx, span := otel.Tracer("jobs.sweeper").Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("jobs.stale_after_seconds", s.staleAfter.Seconds()))

	n, err := s.jobs.FailStale(ctx, s.staleAfter)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck job sweep failed", slog.Any("error", err))
		return
	}
	span.SetAttributes(attribute.Int64("jobs.total_marked_failed", n))
	if n > 0 {
		slog.Warn("marked stuck feedback jobs as failed", slog.Int64("count", n), slog.Duration("stale_after", s.staleAfter))
	}
}
