package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain/mocks"
)

func newTestBreaker(next domain.CompletionClient) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", next, 2, time.Minute)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestBreaker_OpensAfterThresholdAndFailsFast(t *testing.T) {
	m := &mocks.MockCompletionClient{}
	m.On("Complete", mock.Anything, "s", "u").Return("", domain.ErrUpstreamTimeout).Twice()
	cb, _ := newTestBreaker(m)

	for i := 0; i < 2; i++ {
		_, err := cb.Complete(context.Background(), "s", "u")
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := cb.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	m.AssertNumberOfCalls(t, "Complete", 2)
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	m := &mocks.MockCompletionClient{}
	m.On("Complete", mock.Anything, "s", "u").Return("", domain.ErrUpstream).Twice()
	cb, now := newTestBreaker(m)
	for i := 0; i < 2; i++ {
		_, _ = cb.Complete(context.Background(), "s", "u")
	}
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	m.On("Complete", mock.Anything, "s", "u").Return("ok", nil).Once()
	out, err := cb.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreaker_ParseErrorsDoNotTrip(t *testing.T) {
	m := &mocks.MockCompletionClient{}
	m.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrFeedbackParse)
	cb, _ := newTestBreaker(m)
	for i := 0; i < 5; i++ {
		_, err := cb.Complete(context.Background(), "s", "u")
		assert.True(t, errors.Is(err, domain.ErrFeedbackParse))
	}
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 5, cb.Stats()["total_requests"])
	assert.Equal(t, 0, cb.Stats()["total_failures"])
}
