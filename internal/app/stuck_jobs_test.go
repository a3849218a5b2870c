package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

type fakeStaleFailer struct {
	mu    sync.Mutex
	calls []time.Duration
	n     int64
	err   error
}

func (f *fakeStaleFailer) FailStale(_ domain.Context, staleAfter time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, staleAfter)
	return f.n, f.err
}

func (f *fakeStaleFailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewStuckJobSweeperDefaults(t *testing.T) {
	s := NewStuckJobSweeper(&fakeStaleFailer{}, 0, 0)
	require.NotNil(t, s)
	assert.Equal(t, 10*time.Minute, s.staleAfter)
	assert.Equal(t, time.Minute, s.interval)

	assert.Nil(t, NewStuckJobSweeper(nil, time.Minute, time.Minute))
}

func TestStuckJobSweeper_SweepOnce(t *testing.T) {
	f := &fakeStaleFailer{n: 3}
	s := NewStuckJobSweeper(f, 5*time.Minute, time.Minute)
	s.sweepOnce(context.Background())
	require.Len(t, f.calls, 1)
	assert.Equal(t, 5*time.Minute, f.calls[0])

	f.err = errors.New("db down")
	assert.NotPanics(t, func() { s.sweepOnce(context.Background()) })
}

func TestStuckJobSweeper_RunTicksUntilCancelled(t *testing.T) {
	f := &fakeStaleFailer{}
	s := NewStuckJobSweeper(f, time.Minute, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return f.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	var nilSweeper *StuckJobSweeper
	assert.NotPanics(t, func() { nilSweeper.Run(context.Background()) })
}
