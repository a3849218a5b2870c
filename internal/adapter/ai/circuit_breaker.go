package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed indicates the circuit is allowing requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen indicates the circuit is rejecting requests after repeated upstream failures.
	CircuitOpen
	// CircuitHalfOpen indicates the circuit lets a single probe through.
	CircuitHalfOpen
)

// String returns a string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("completion circuit open")

// CircuitBreaker guards a CompletionClient. When the upstream keeps failing it
// rejects calls immediately instead of letting each request wait for a timeout.
// It never retries a call itself.
type CircuitBreaker struct {
	next             domain.CompletionClient
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	probing         bool
	totalRequests   int
	totalFailures   int
}

// NewCircuitBreaker wraps next. threshold consecutive upstream failures open the
// circuit; after recovery it lets one probe through.
func NewCircuitBreaker(name string, next domain.CompletionClient, threshold int, recovery time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &CircuitBreaker{
		next:             next,
		name:             name,
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		now:              time.Now,
		state:            CircuitClosed,
	}
}

// Complete implements domain.CompletionClient.
func (cb *CircuitBreaker) Complete(ctx domain.Context, systemPrompt, userPrompt string) (string, error) {
	if !cb.acquire() {
		return "", fmt.Errorf("op=ai.breaker: %w: %w", domain.ErrUpstream, ErrCircuitOpen)
	}
	out, err := cb.next.Complete(ctx, systemPrompt, userPrompt)
	cb.record(err)
	return out, err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.recoveryTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

// record counts only upstream faults. A malformed answer is the model's
// content problem, not an availability problem.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.totalRequests++
	cb.probing = false
	if err == nil || !isUpstreamFault(err) {
		if cb.state != CircuitClosed {
			slog.Info("completion circuit closed", slog.String("client", cb.name))
		}
		cb.state = CircuitClosed
		cb.failureCount = 0
		return
	}
	cb.totalFailures++
	cb.failureCount++
	cb.lastFailureTime = cb.now()
	if cb.state == CircuitHalfOpen || cb.failureCount >= cb.failureThreshold {
		if cb.state != CircuitOpen {
			slog.Warn("completion circuit opened",
				slog.String("client", cb.name),
				slog.Int("failure_count", cb.failureCount),
				slog.Int("threshold", cb.failureThreshold))
		}
		cb.state = CircuitOpen
	}
}

func isUpstreamFault(err error) bool {
	return errors.Is(err, domain.ErrUpstream) ||
		errors.Is(err, domain.ErrUpstreamTimeout) ||
		errors.Is(err, domain.ErrUpstreamRateLimit)
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]any{
		"client":         cb.name,
		"state":          cb.state.String(),
		"failure_count":  cb.failureCount,
		"total_requests": cb.totalRequests,
		"total_failures": cb.totalFailures,
		"last_failure":   cb.lastFailureTime,
	}
}
