// Package redpanda carries feedback generation jobs from the API process to
// the worker over a Redpanda (Kafka API) topic.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	metrics "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

const (
	// DefaultTopic is the feedback job topic.
	DefaultTopic = "feedback-generate"
	jobType      = "feedback"
)

// txClient is the transactional producer surface of *kgo.Client.
type txClient interface {
	BeginTransaction() error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error
	Close()
}

// ProducerConfig configures NewProducer.
type ProducerConfig struct {
	Brokers         []string
	Topic           string
	TransactionalID string
	Partitions      int32
}

// Producer implements domain.Queue. Each enqueue is its own transaction so a
// record is visible to read-committed consumers only once fully written.
type Producer struct {
	client txClient
	topic  string
	// serializes transactions on the shared client
	txLock chan struct{}
}

var _ domain.Queue = (*Producer)(nil)

// NewProducer connects a transactional producer and ensures the topic exists.
func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.new_producer: no seed brokers provided")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.TransactionalID == "" {
		cfg.TransactionalID = "ai-mock-interviewer-producer"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 3
	}

	kt := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.TransactionalID(cfg.TransactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kt.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.new_producer: %w", err)
	}
	if err := createTopicIfNotExists(ctx, client, cfg.Topic, cfg.Partitions, 1); err != nil {
		slog.Warn("failed to ensure topic, it may already exist", slog.String("topic", cfg.Topic), slog.Any("error", err))
	}
	slog.Info("redpanda producer ready", slog.Any("brokers", cfg.Brokers), slog.String("topic", cfg.Topic))
	return newProducer(client, cfg.Topic), nil
}

func newProducer(client txClient, topic string) *Producer {
	return &Producer{client: client, topic: topic, txLock: make(chan struct{}, 1)}
}

// EnqueueFeedback publishes the job. Records are keyed by interview and
// candidate so regenerations for one pair stay ordered on one partition.
func (p *Producer) EnqueueFeedback(ctx domain.Context, payload domain.FeedbackTaskPayload) (string, error) {
	if payload.JobID == "" || payload.InterviewID == "" {
		return "", fmt.Errorf("op=redpanda.enqueue: %w: job and interview ids required", domain.ErrInvalidArgument)
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("job_id", payload.JobID), slog.String("topic", p.topic))

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=redpanda.enqueue: marshal payload: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(payload.InterviewID + "/" + payload.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(payload.JobID)},
			{Key: "interview_id", Value: []byte(payload.InterviewID)},
			{Key: "request_id", Value: []byte(payload.RequestID)},
		},
		Timestamp: time.Now(),
	}

	select {
	case p.txLock <- struct{}{}:
		defer func() { <-p.txLock }()
	case <-ctx.Done():
		return "", fmt.Errorf("op=redpanda.enqueue: %w", ctx.Err())
	}

	if err := p.client.BeginTransaction(); err != nil {
		return "", fmt.Errorf("op=redpanda.enqueue: begin transaction: %w", err)
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			lg.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("op=redpanda.enqueue: produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return "", fmt.Errorf("op=redpanda.enqueue: commit transaction: %w", err)
	}

	metrics.EnqueueJob(jobType)
	lg.Info("feedback job enqueued")
	return payload.JobID, nil
}

// Close closes the producer client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
