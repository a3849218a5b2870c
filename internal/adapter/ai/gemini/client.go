// Package gemini implements the Completion Service on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// BaseURL and HTTPClient are overridable for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client sends one grading request per call. It never retries.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini completion client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("op=gemini.new: %w: api key is required", domain.ErrInvalidArgument)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("op=gemini.new: %w: model is required", domain.ErrInvalidArgument)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL, APIVersion: "v1beta"}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("op=gemini.new: %w", err)
	}
	return &Client{client: c, model: cfg.Model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the system and user prompts and returns the raw text answer.
func (c *Client) Complete(ctx domain.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, span := otel.Tracer("ai.gemini").Start(ctx, "gemini.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", c.model), attribute.Int("ai.prompt_chars", len(userPrompt)))
	start := time.Now()
	text, err := c.complete(ctx, systemPrompt, userPrompt)
	observability.ObserveCompletion(c.model, outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content")
		return "", err
	}
	span.SetAttributes(attribute.Int("ai.completion_chars", len(text)))
	return text, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		}
	}
	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", classify(ctx, err)
	}
	if res == nil {
		return "", fmt.Errorf("op=gemini.complete: %w: no response", domain.ErrUpstream)
	}
	text, err := res.Text()
	if err != nil {
		return "", fmt.Errorf("op=gemini.complete: %w: %v", domain.ErrUpstream, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("op=gemini.complete: %w: empty response", domain.ErrFeedbackParse)
	}
	return text, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return "rate_limited"
	default:
		return "error"
	}
}

// classify maps transport failures onto the domain upstream sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("op=gemini.complete: %w: %v", domain.ErrUpstreamTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "rate limit"):
		return fmt.Errorf("op=gemini.complete: %w: %v", domain.ErrUpstreamRateLimit, err)
	case strings.Contains(msg, "504"), strings.Contains(msg, "deadline_exceeded"):
		return fmt.Errorf("op=gemini.complete: %w: %v", domain.ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("op=gemini.complete: %w: %v", domain.ErrUpstream, err)
	}
}
