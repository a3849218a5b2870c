package stub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

func TestComplete_ProducesValidFeedback(t *testing.T) {
	c := &Client{}
	raw, err := c.Complete(context.Background(), "sys", "Transcript:\n- assistant: hi\n- user: hello\n")
	require.NoError(t, err)

	out, err := usecase.DecodeFeedback(raw)
	require.NoError(t, err)
	require.NoError(t, usecase.ValidateFeedback(out))
}

func TestComplete_Deterministic(t *testing.T) {
	c := &Client{}
	a, err := c.Complete(context.Background(), "", "x")
	require.NoError(t, err)
	b, err := c.Complete(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComplete_HonoursContext(t *testing.T) {
	c := &Client{Latency: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, "", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
