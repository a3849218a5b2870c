package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	metrics "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

// Processor runs one feedback job to completion.
type Processor interface {
	Process(ctx context.Context, payload domain.FeedbackTaskPayload) (domain.Feedback, error)
}

// groupClient is the consumer group surface of *kgo.Client.
type groupClient interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	MarkCommitRecords(rs ...*kgo.Record)
	CommitMarkedOffsets(ctx context.Context) error
	Close()
}

// ConsumerConfig configures NewConsumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Workers int
}

// Consumer reads feedback jobs from the topic and hands them to a fixed pool
// of workers. Every record is marked for commit once handled, whatever the
// outcome; failures are recorded on the job row instead of being redelivered.
type Consumer struct {
	client  groupClient
	proc    Processor
	topic   string
	groupID string
	workers int
	poller  *AdaptivePoller
}

// NewConsumer joins the consumer group.
func NewConsumer(cfg ConsumerConfig, proc Processor) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.new_consumer: no seed brokers provided")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("op=redpanda.new_consumer: missing required group ID")
	}
	if proc == nil {
		return nil, fmt.Errorf("op=redpanda.new_consumer: processor required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	kt := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kt.Hooks()...),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.new_consumer: %w", err)
	}
	slog.Info("redpanda consumer created",
		slog.Any("brokers", cfg.Brokers),
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic),
		slog.Int("workers", cfg.Workers))
	return newConsumer(client, proc, cfg), nil
}

func newConsumer(client groupClient, proc Processor, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Consumer{
		client:  client,
		proc:    proc,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		workers: cfg.Workers,
		poller:  NewAdaptivePoller(500 * time.Millisecond),
	}
}

// Start consumes until ctx is cancelled, then drains in-flight jobs and
// commits their offsets.
func (c *Consumer) Start(ctx context.Context) error {
	jobs := make(chan *kgo.Record, c.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for rec := range jobs {
				c.handle(ctx, rec)
				c.client.MarkCommitRecords(rec)
			}
			slog.Debug("worker stopped", slog.Int("worker_id", id))
		}(i)
	}

	c.fetch(ctx, jobs)
	close(jobs)
	wg.Wait()

	commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(commitCtx); err != nil {
		slog.Warn("final offset commit failed", slog.Any("error", err))
	}
	slog.Info("redpanda consumer stopped", slog.String("group_id", c.groupID))
	return ctx.Err()
}

func (c *Consumer) fetch(ctx context.Context, jobs chan<- *kgo.Record) {
	for {
		if ctx.Err() != nil {
			return
		}
		fetches := c.client.PollRecords(ctx, c.workers*2)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		failed := false
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			failed = true
			slog.Error("fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err))
		})
		if failed {
			c.poller.RecordFailure()
			if !sleepCtx(ctx, c.poller.NextInterval()) {
				return
			}
		} else {
			c.poller.RecordSuccess()
		}

		for _, rec := range fetches.Records() {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	var payload domain.FeedbackTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("dropping undecodable record",
			slog.String("topic", rec.Topic),
			slog.Int64("offset", rec.Offset),
			slog.Any("error", err))
		return
	}

	lg := slog.Default().With(
		slog.String("job_id", payload.JobID),
		slog.String("interview_id", payload.InterviewID),
		slog.String("request_id", payload.RequestID))
	ctx = observability.ContextWithLogger(ctx, lg)
	if payload.RequestID != "" {
		ctx = observability.ContextWithRequestID(ctx, payload.RequestID)
	}

	ctx, span := otel.Tracer("queue.consumer").Start(ctx, "feedback.process")
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("interview.id", payload.InterviewID),
		attribute.Int64("messaging.kafka.offset", rec.Offset),
	)
	defer span.End()

	metrics.StartProcessingJob(jobType)
	start := time.Now()
	f, err := c.proc.Process(ctx, payload)
	if err != nil {
		code := failureCode(err)
		metrics.FailJob(jobType, code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		if errors.Is(err, domain.ErrConflict) {
			lg.Info("skipping redelivered job", slog.Any("error", err))
			return
		}
		lg.Error("feedback job failed", slog.String("code", code), slog.Any("error", err))
		return
	}
	metrics.CompleteJob(jobType)
	metrics.ObserveFeedback(f.TotalScore)
	lg.Info("feedback job completed",
		slog.String("feedback_id", f.ID),
		slog.Float64("total_score", f.TotalScore),
		slog.Duration("elapsed", time.Since(start)))
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
