package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/pkg/textx"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

const (
	defaultCompletionTimeout = 45 * time.Second
	rawLogLimit              = 4096
)

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

// FeedbackEngine turns a transcript into a persisted, schema-valid Feedback.
// One call is one sequential pipeline: render, complete, parse, validate, persist.
// The model is never retried; a failed or malformed completion is returned as an error.
type FeedbackEngine struct {
	Completion domain.CompletionClient
	Feedback   domain.FeedbackRepository
	Prompts    FeedbackPrompts
	Timeout    time.Duration
	Tokens     TokenCounter
	MaxTokens  int

	Now   func() time.Time
	NewID func() string
}

// NewFeedbackEngine constructs a FeedbackEngine.
func NewFeedbackEngine(c domain.CompletionClient, repo domain.FeedbackRepository, prompts FeedbackPrompts, timeout time.Duration) FeedbackEngine {
	return FeedbackEngine{Completion: c, Feedback: repo, Prompts: prompts, Timeout: timeout, Now: nowUTC, NewID: NewUUID}
}

// WithTokenGuard rejects transcripts whose prompt exceeds max tokens.
func (e FeedbackEngine) WithTokenGuard(tc TokenCounter, max int) FeedbackEngine {
	e.Tokens, e.MaxTokens = tc, max
	return e
}

// Generate grades the transcript and upserts the result. When feedbackID is
// empty an existing document for (interviewID, userID) is reused so the pair
// never gains a second row.
func (e FeedbackEngine) Generate(ctx domain.Context, interviewID, userID string, transcript []domain.TranscriptTurn, feedbackID string) (domain.Feedback, error) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("interview_id", interviewID), slog.String("user_id", userID))
	if interviewID == "" || userID == "" {
		return domain.Feedback{}, fmt.Errorf("%w: interviewId and userId are required", domain.ErrInvalidArgument)
	}
	if len(transcript) == 0 {
		return domain.Feedback{}, fmt.Errorf("%w: transcript is empty", domain.ErrInvalidArgument)
	}

	id, err := e.resolveID(ctx, interviewID, userID, feedbackID)
	if err != nil {
		return domain.Feedback{}, err
	}

	prompt := e.Prompts.BuildUserPrompt(RenderTranscript(transcript))
	if e.Tokens != nil && e.MaxTokens > 0 {
		if n := e.Tokens.Count(e.Prompts.System + prompt); n > e.MaxTokens {
			return domain.Feedback{}, fmt.Errorf("%w: transcript too long (%d tokens, max %d)", domain.ErrInvalidArgument, n, e.MaxTokens)
		}
	}

	raw, err := e.complete(ctx, prompt)
	if err != nil {
		lg.Error("completion failed", slog.Any("error", err))
		return domain.Feedback{}, err
	}

	out, err := DecodeFeedback(raw)
	if err != nil {
		lg.Error("feedback decode failed", slog.String("raw", textx.Truncate(raw, rawLogLimit)), slog.Any("error", err))
		return domain.Feedback{}, fmt.Errorf("op=feedback.generate: %w", err)
	}
	if err := ValidateFeedback(out); err != nil {
		lg.Error("feedback rejected", slog.String("raw", textx.Truncate(raw, rawLogLimit)), slog.Any("error", err))
		return domain.Feedback{}, fmt.Errorf("op=feedback.generate: %w", err)
	}

	f := out.toFeedback()
	f.ID = id
	f.InterviewID = interviewID
	f.UserID = userID
	f.CreatedAt = e.Now()
	if err := e.Feedback.Upsert(ctx, f); err != nil {
		return domain.Feedback{}, fmt.Errorf("op=feedback.persist: %w", err)
	}
	lg.Info("feedback persisted", slog.String("feedback_id", f.ID), slog.Float64("total_score", f.TotalScore))
	return f, nil
}

// resolveID picks the document id so that (interview, user) stays unique.
func (e FeedbackEngine) resolveID(ctx domain.Context, interviewID, userID, feedbackID string) (string, error) {
	existing, err := e.Feedback.FindByInterviewAndUser(ctx, interviewID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if feedbackID != "" {
			other, gerr := e.Feedback.Get(ctx, feedbackID)
			if gerr == nil && (other.InterviewID != interviewID || other.UserID != userID) {
				return "", fmt.Errorf("%w: feedback %s belongs to another candidate", domain.ErrConflict, feedbackID)
			}
			if gerr != nil && !errors.Is(gerr, domain.ErrNotFound) {
				return "", fmt.Errorf("op=feedback.lookup: %w", gerr)
			}
			return feedbackID, nil
		}
		return e.NewID(), nil
	case err != nil:
		return "", fmt.Errorf("op=feedback.lookup: %w", err)
	}
	if feedbackID != "" && feedbackID != existing.ID {
		return "", fmt.Errorf("%w: feedback for this candidate already exists as %s", domain.ErrConflict, existing.ID)
	}
	return existing.ID, nil
}

func (e FeedbackEngine) complete(ctx domain.Context, prompt string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	raw, err := e.Completion.Complete(cctx, e.Prompts.System, prompt)
	switch {
	case err == nil:
		if strings.TrimSpace(raw) == "" {
			return "", fmt.Errorf("op=feedback.complete: %w: empty completion", domain.ErrFeedbackParse)
		}
		return raw, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("op=feedback.complete: %w: %v", domain.ErrUpstreamTimeout, err)
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, domain.ErrUpstreamRateLimit), errors.Is(err, domain.ErrUpstream):
		return "", fmt.Errorf("op=feedback.complete: %w", err)
	default:
		return "", fmt.Errorf("op=feedback.complete: %w: %v", domain.ErrUpstream, err)
	}
}

// Get returns the candidate's feedback for an interview.
func (e FeedbackEngine) Get(ctx domain.Context, interviewID, userID string) (domain.Feedback, error) {
	f, err := e.Feedback.FindByInterviewAndUser(ctx, interviewID, userID)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("op=feedback.get: %w", err)
	}
	return f, nil
}

