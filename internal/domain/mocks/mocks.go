// Package mocks holds testify mocks of the domain ports.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// MockCompletionClient mocks domain.CompletionClient.
type MockCompletionClient struct{ mock.Mock }

func (m *MockCompletionClient) Complete(ctx domain.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

// MockMailer mocks domain.Mailer.
type MockMailer struct{ mock.Mock }

func (m *MockMailer) Configured() bool { return m.Called().Bool(0) }

func (m *MockMailer) SendInvitation(ctx domain.Context, n domain.InvitationNotice) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockMailer) SendFeedbackReady(ctx domain.Context, n domain.FeedbackNotice) error {
	return m.Called(ctx, n).Error(0)
}

// MockQueue mocks domain.Queue.
type MockQueue struct{ mock.Mock }

func (m *MockQueue) EnqueueFeedback(ctx domain.Context, p domain.FeedbackTaskPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// MockRateLimiter mocks domain.RateLimiter.
type MockRateLimiter struct{ mock.Mock }

func (m *MockRateLimiter) Allow(ctx domain.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockSessionManager mocks domain.SessionManager.
type MockSessionManager struct{ mock.Mock }

func (m *MockSessionManager) Issue(ctx domain.Context, subject string) (string, time.Time, error) {
	args := m.Called(ctx, subject)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockSessionManager) Verify(ctx domain.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockSessionManager) Revoke(ctx domain.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// MockIdentityProvider mocks domain.IdentityProvider.
type MockIdentityProvider struct{ mock.Mock }

func (m *MockIdentityProvider) Register(ctx domain.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) Authenticate(ctx domain.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) Rebind(ctx domain.Context, email, subject string) (string, error) {
	args := m.Called(ctx, email, subject)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) Deactivate(ctx domain.Context, subject string) error {
	return m.Called(ctx, subject).Error(0)
}

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t testingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// NewMockCompletionClient returns a mock whose expectations are asserted on cleanup.
func NewMockCompletionClient(t testingT) *MockCompletionClient {
	m := &MockCompletionClient{}
	register(t, &m.Mock)
	return m
}

// NewMockMailer returns a mock whose expectations are asserted on cleanup.
func NewMockMailer(t testingT) *MockMailer {
	m := &MockMailer{}
	register(t, &m.Mock)
	return m
}

// NewMockQueue returns a mock whose expectations are asserted on cleanup.
func NewMockQueue(t testingT) *MockQueue {
	m := &MockQueue{}
	register(t, &m.Mock)
	return m
}

// NewMockRateLimiter returns a mock whose expectations are asserted on cleanup.
func NewMockRateLimiter(t testingT) *MockRateLimiter {
	m := &MockRateLimiter{}
	register(t, &m.Mock)
	return m
}

// NewMockSessionManager returns a mock whose expectations are asserted on cleanup.
func NewMockSessionManager(t testingT) *MockSessionManager {
	m := &MockSessionManager{}
	register(t, &m.Mock)
	return m
}

// NewMockIdentityProvider returns a mock whose expectations are asserted on cleanup.
func NewMockIdentityProvider(t testingT) *MockIdentityProvider {
	m := &MockIdentityProvider{}
	register(t, &m.Mock)
	return m
}
