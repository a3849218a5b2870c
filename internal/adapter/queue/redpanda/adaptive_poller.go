package redpanda

import (
	"math"
	"sync"
	"time"
)

// AdaptivePoller paces the fetch loop after broker errors: consecutive
// failures back off geometrically up to maxInterval, a success resets it.
type AdaptivePoller struct {
	mu                 sync.Mutex
	baseInterval       time.Duration
	maxInterval        time.Duration
	backoffFactor      float64
	consecutiveFailure int
	lastFailure        time.Time
}

// NewAdaptivePoller returns a poller starting at baseInterval.
func NewAdaptivePoller(baseInterval time.Duration) *AdaptivePoller {
	if baseInterval <= 0 {
		baseInterval = 500 * time.Millisecond
	}
	return &AdaptivePoller{
		baseInterval:  baseInterval,
		maxInterval:   10 * time.Second,
		backoffFactor: 2,
	}
}

// NextInterval is how long to wait before the next poll. Zero while healthy.
func (p *AdaptivePoller) NextInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consecutiveFailure == 0 {
		return 0
	}
	d := float64(p.baseInterval) * math.Pow(p.backoffFactor, float64(p.consecutiveFailure-1))
	if d > float64(p.maxInterval) {
		return p.maxInterval
	}
	return time.Duration(d)
}

// RecordSuccess resets the backoff.
func (p *AdaptivePoller) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFailure = 0
}

// RecordFailure extends the backoff.
func (p *AdaptivePoller) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFailure++
	p.lastFailure = time.Now()
}

// IsHealthy reports false after three failed polls in a row.
func (p *AdaptivePoller) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFailure < 3
}
