// Package main provides the worker application entry point.
// The worker generates interview feedback from jobs on the Redpanda topic.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/mailer"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/session"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/app"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register Prometheus metrics in the worker process and expose them on a
	// dedicated /metrics endpoint so Prometheus can scrape job metrics.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: ":9090", Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg, "worker")
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv), slog.String("store", cfg.StoreDriver))
	if cfg.StoreDriver == "memory" {
		slog.Error("the worker cannot share an in-memory store; run the server alone for STORE_DRIVER=memory")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("document store connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	completion, err := app.NewCompletionClient(ctx, cfg)
	if err != nil {
		slog.Error("completion client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	mail, err := mailer.New(cfg)
	if err != nil {
		slog.Error("mailer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// The worker never enqueues or authenticates; sessions are unused here.
	svc := app.BuildServices(cfg, app.Deps{
		Stores:      stores,
		Completion:  completion,
		Mailer:      mail,
		Sessions:    session.NewTokenIssuer(cfg.SessionKey(), cfg.SessionTTL, nil),
		Credentials: session.NewCredentials(stores.Identities),
	})

	consumer, err := redpanda.NewConsumer(redpanda.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.FeedbackTopic,
		GroupID: cfg.ConsumerGroup,
		Workers: cfg.ConsumerWorkers,
	}, svc.Feedback)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Error("failed to close consumer", slog.Any("error", err))
		}
	}()

	// Jobs whose worker crashed mid-pipeline would otherwise stay in
	// processing forever.
	if sweeper := app.NewStuckJobSweeper(svc.Feedback, cfg.FeedbackJobStaleAfter, cfg.SweepInterval); sweeper != nil {
		go sweeper.Run(ctx)
	}

	if retention := app.NewRetentionJob(svc.Feedback, cfg.DataRetentionDays, cfg.RetentionSchedule); retention != nil {
		go func() {
			if err := retention.Start(ctx); err != nil {
				slog.Error("retention job disabled", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting redpanda consumer", slog.Int("workers", cfg.ConsumerWorkers))
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker error", slog.Any("error", err))
	}
	slog.Info("worker stopped")
}
