package redpanda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptivePoller_BacksOffAndResets(t *testing.T) {
	p := NewAdaptivePoller(time.Second)
	assert.Zero(t, p.NextInterval())
	assert.True(t, p.IsHealthy())

	p.RecordFailure()
	assert.Equal(t, time.Second, p.NextInterval())
	p.RecordFailure()
	assert.Equal(t, 2*time.Second, p.NextInterval())
	p.RecordFailure()
	assert.Equal(t, 4*time.Second, p.NextInterval())
	assert.False(t, p.IsHealthy())

	for i := 0; i < 10; i++ {
		p.RecordFailure()
	}
	assert.Equal(t, 10*time.Second, p.NextInterval())

	p.RecordSuccess()
	assert.Zero(t, p.NextInterval())
	assert.True(t, p.IsHealthy())
}

func TestAdaptivePoller_DefaultBase(t *testing.T) {
	p := NewAdaptivePoller(0)
	p.RecordFailure()
	assert.Equal(t, 500*time.Millisecond, p.NextInterval())
}
