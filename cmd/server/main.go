// Command server starts the AI mock interviewer HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/mailer"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/session"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/app"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/service/ratelimiter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, completion, queue and invitation instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg, "server")
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("document store connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	producer, err := redpanda.NewProducer(ctx, redpanda.ProducerConfig{
		Brokers:         cfg.KafkaBrokers,
		Topic:           cfg.FeedbackTopic,
		TransactionalID: "ai-mock-interviewer-server",
	})
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	mail, err := mailer.New(cfg)
	if err != nil {
		slog.Error("mailer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if !mail.Configured() {
		slog.Warn("email not configured; invitations are stored without sending")
	}

	completion, err := app.NewCompletionClient(ctx, cfg)
	if err != nil {
		slog.Error("completion client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	limiter := ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
		"invite": ratelimiter.NewBucketConfigFromPerHour(cfg.InvitesPerHour),
	})

	svc := app.BuildServices(cfg, app.Deps{
		Stores:      stores,
		Completion:  completion,
		Queue:       producer,
		Mailer:      mail,
		Limiter:     limiter.Gate(),
		Sessions:    session.NewTokenIssuer(cfg.SessionKey(), cfg.SessionTTL, rdb),
		Credentials: session.NewCredentials(stores.Identities),
	})

	if err := svc.Identity.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("admin bootstrap failed", slog.Any("error", err))
	}

	// The in-memory store is invisible to a separate worker process, so the
	// consumer runs in-process for single-binary dev runs.
	if cfg.StoreDriver == "memory" {
		consumer, err := redpanda.NewConsumer(redpanda.ConsumerConfig{
			Brokers: cfg.KafkaBrokers, Topic: cfg.FeedbackTopic,
			GroupID: cfg.ConsumerGroup, Workers: cfg.ConsumerWorkers,
		}, svc.Feedback)
		if err != nil {
			slog.Error("in-process consumer init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = consumer.Close() }()
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("in-process consumer stopped", slog.Any("error", err))
			}
		}()
		go app.NewStuckJobSweeper(svc.Feedback, cfg.FeedbackJobStaleAfter, cfg.SweepInterval).Run(ctx)
	}

	dbCheck, redisCheck := app.BuildReadinessChecks(stores, rdb)
	srv := httpserver.NewServer(cfg, svc, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("store", cfg.StoreDriver))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
