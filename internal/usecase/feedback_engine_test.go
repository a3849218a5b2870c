package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/memory"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

const validFeedbackJSON = `{
  "totalScore": 74,
  "categoryScores": [
    {"name": "Communication Skills", "score": 80, "comment": "Clear."},
    {"name": "Technical Knowledge", "score": 70, "comment": "Decent."},
    {"name": "Problem-Solving", "score": 72, "comment": "Methodical."},
    {"name": "Cultural & Role Fit", "score": 78, "comment": "Good fit."},
    {"name": "Confidence & Clarity", "score": 68, "comment": "Some hesitation."}
  ],
  "strengths": ["Structured answers"],
  "areasForImprovement": ["Go deeper on trade-offs"],
  "finalAssessment": "Promising mid-level candidate."
}`

func sixTurns() []domain.TranscriptTurn {
	return []domain.TranscriptTurn{
		{Role: "assistant", Content: "Tell me about yourself."},
		{Role: "user", Content: "I build backend services in Go."},
		{Role: "assistant", Content: "How do you handle concurrency?"},
		{Role: "user", Content: "Goroutines with channels and contexts."},
		{Role: "assistant", Content: "Describe a hard bug."},
		{Role: "user", Content: "A race in a cache refresh path."},
	}
}

func newEngine(t *testing.T, c domain.CompletionClient) (usecase.FeedbackEngine, *memory.FeedbackRepo) {
	t.Helper()
	repo := memory.NewFeedbackRepo()
	e := usecase.NewFeedbackEngine(c, repo, ai.MustLoadFeedbackPrompts(), time.Second)
	return e, repo
}

func TestFeedbackEngine_FencedResponseParsed(t *testing.T) {
	client := mocks.NewMockCompletionClient(t)
	client.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "- user: Goroutines with channels and contexts.\n") &&
			strings.Contains(p, "**Problem-Solving**")
	})).Return("```json\n"+validFeedbackJSON+"\n```", nil).Once()
	e, repo := newEngine(t, client)

	f, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 74.0, f.TotalScore)
	require.Len(t, f.CategoryScores, 5)
	assert.Equal(t, "Communication Skills", f.CategoryScores[0].Name)
	assert.Equal(t, "Promising mid-level candidate.", f.FinalAssessment)
	assert.False(t, f.CreatedAt.IsZero())
	assert.Equal(t, 1, repo.Count())
}

func TestFeedbackEngine_RegenerationReusesDocument(t *testing.T) {
	client := mocks.NewMockCompletionClient(t)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(validFeedbackJSON, nil).Twice()
	e, repo := newEngine(t, client)
	ctx := context.Background()

	first, err := e.Generate(ctx, "iv1", "u1", sixTurns(), "")
	require.NoError(t, err)
	second, err := e.Generate(ctx, "iv1", "u1", sixTurns(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.Count())
}

func TestFeedbackEngine_ExplicitIDConflicts(t *testing.T) {
	client := mocks.NewMockCompletionClient(t)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(validFeedbackJSON, nil).Once()
	e, repo := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Generate(ctx, "iv1", "u1", sixTurns(), "fb-1")
	require.NoError(t, err)

	_, err = e.Generate(ctx, "iv1", "u1", sixTurns(), "fb-2")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = e.Generate(ctx, "iv1", "u2", sixTurns(), "fb-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, repo.Count())
}

func TestFeedbackEngine_MalformedOutputPersistsNothing(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want error
	}{
		"prose":              {raw: "I think the candidate did well.", want: domain.ErrFeedbackParse},
		"truncated":          {raw: validFeedbackJSON[:120], want: domain.ErrFeedbackParse},
		"four categories":    {raw: strings.Replace(validFeedbackJSON, `{"name": "Confidence & Clarity", "score": 68, "comment": "Some hesitation."}`, ``, 1), want: domain.ErrSchemaInvalid},
		"score out of range": {raw: strings.Replace(validFeedbackJSON, `"totalScore": 74`, `"totalScore": 140`, 1), want: domain.ErrSchemaInvalid},
		"unknown category":   {raw: strings.Replace(validFeedbackJSON, "Cultural & Role Fit", "Leadership", 1), want: domain.ErrSchemaInvalid},
		"no strengths":       {raw: strings.Replace(validFeedbackJSON, `["Structured answers"]`, `[]`, 1), want: domain.ErrSchemaInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := mocks.NewMockCompletionClient(t)
			client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(tc.raw, nil).Once()
			e, repo := newEngine(t, client)
			_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, repo.Count())
		})
	}
}

func TestFeedbackEngine_UpstreamErrors(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		client := mocks.NewMockCompletionClient(t)
		client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()
		e, repo := newEngine(t, client)
		_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
		assert.Equal(t, 0, repo.Count())
	})
	t.Run("generic failure is not retried", func(t *testing.T) {
		client := mocks.NewMockCompletionClient(t)
		client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()
		e, _ := newEngine(t, client)
		_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})
	t.Run("empty completion", func(t *testing.T) {
		client := mocks.NewMockCompletionClient(t)
		client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("  ", nil).Once()
		e, _ := newEngine(t, client)
		_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
		assert.ErrorIs(t, err, domain.ErrFeedbackParse)
	})
}

func TestFeedbackEngine_InputValidation(t *testing.T) {
	client := mocks.NewMockCompletionClient(t)
	e, _ := newEngine(t, client)
	ctx := context.Background()
	_, err := e.Generate(ctx, "", "u1", sixTurns(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.Generate(ctx, "iv1", "u1", nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	client.AssertNotCalled(t, "Complete")
}

type fixedCounter int

func (c fixedCounter) Count(string) int { return int(c) }

func TestFeedbackEngine_TokenGuard(t *testing.T) {
	client := mocks.NewMockCompletionClient(t)
	e, _ := newEngine(t, client)
	e = e.WithTokenGuard(fixedCounter(5000), 1000)
	_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	client.AssertNotCalled(t, "Complete")
}

func TestFeedbackEngine_TimeoutApplied(t *testing.T) {
	slow := completionFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	repo := memory.NewFeedbackRepo()
	e := usecase.NewFeedbackEngine(slow, repo, ai.MustLoadFeedbackPrompts(), 20*time.Millisecond)
	_, err := e.Generate(context.Background(), "iv1", "u1", sixTurns(), "")
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

type completionFunc func(ctx context.Context) (string, error)

func (f completionFunc) Complete(ctx domain.Context, _, _ string) (string, error) { return f(ctx) }

func TestScoreLabel(t *testing.T) {
	assert.Equal(t, "Excellent", usecase.ScoreLabel(80))
	assert.Equal(t, "Good", usecase.ScoreLabel(79.9))
	assert.Equal(t, "Fair", usecase.ScoreLabel(40))
	assert.Equal(t, "Poor", usecase.ScoreLabel(12))
}
