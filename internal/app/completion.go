package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// NewCompletionClient returns the Gemini client behind a circuit breaker, or
// the deterministic stub when no API key is set outside prod.
func NewCompletionClient(ctx context.Context, cfg config.Config) (domain.CompletionClient, error) {
	if cfg.GeminiAPIKey == "" {
		if cfg.IsProd() {
			return nil, fmt.Errorf("op=app.completion: %w: GEMINI_API_KEY is required in prod", domain.ErrInvalidArgument)
		}
		slog.Warn("GEMINI_API_KEY not set; using stub completion client")
		return stub.New(), nil
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "gemini " + r.Method
			})),
	}
	c, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel, HTTPClient: httpClient})
	if err != nil {
		return nil, fmt.Errorf("op=app.completion: %w", err)
	}
	return ai.NewCircuitBreaker("gemini", c, 5, 30*time.Second), nil
}
