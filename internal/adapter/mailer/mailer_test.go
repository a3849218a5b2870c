package mailer

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

type fakeTransport struct {
	mu    sync.Mutex
	errs  []error
	calls int
	last  string
	to    []string
}

func (f *fakeTransport) Send(_ context.Context, _ string, to []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last, f.to = string(msg), to
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func newTestMailer(t *testing.T, tr Transport) *SMTPMailer {
	t.Helper()
	m, err := NewWithTransport(tr, "noreply@example.com", true, time.Second)
	require.NoError(t, err)
	m.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3) }
	return m
}

func TestSendInvitation_RendersTemplate(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestMailer(t, tr)
	deadline := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	err := m.SendInvitation(context.Background(), domain.InvitationNotice{
		To: "alice@x.com", RecipientName: "Alice", SenderName: "Bob Admin",
		Role: "Backend Engineer", Level: "Mid",
		Link: "http://app/interview/iv1?invitationToken=abc", Deadline: &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@x.com"}, tr.to)
	assert.Contains(t, tr.last, "Subject: Mock Interview Invitation from Bob Admin")
	assert.Contains(t, tr.last, "Content-Type: text/html")
	assert.Contains(t, tr.last, "<strong>Alice</strong>")
	assert.Contains(t, tr.last, "<strong>Backend Engineer</strong> position at <strong>Mid</strong> level")
	assert.Contains(t, tr.last, `href="http://app/interview/iv1?invitationToken=abc"`)
	assert.Contains(t, tr.last, "March 14, 2025")
}

func TestSendInvitation_EscapesHTML(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestMailer(t, tr)
	require.NoError(t, m.SendInvitation(context.Background(), domain.InvitationNotice{
		To: "a@x.com", RecipientName: "<script>x</script>", SenderName: "S", Link: "http://app",
	}))
	assert.NotContains(t, tr.last, "<script>")
	assert.NotContains(t, tr.last, "complete it before")
}

func TestSendFeedbackReady(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestMailer(t, tr)
	require.NoError(t, m.SendFeedbackReady(context.Background(), domain.FeedbackNotice{
		To: "alice@x.com", CandidateName: "Alice", Role: "Frontend Developer",
		TotalScore: 81.6, ScoreLabel: "Excellent", Link: "http://app/interview/iv1/feedback",
	}))
	assert.Contains(t, tr.last, "Subject: Interview Feedback Available")
	assert.Contains(t, tr.last, "82/100</strong> (Excellent)")
	assert.Contains(t, tr.last, "View Feedback")
}

func TestSend_RetriesTransientFailures(t *testing.T) {
	tr := &fakeTransport{errs: []error{errors.New("connection reset"), errors.New("timeout")}}
	m := newTestMailer(t, tr)
	require.NoError(t, m.SendFeedbackReady(context.Background(), domain.FeedbackNotice{To: "a@x.com"}))
	assert.Equal(t, 3, tr.calls)
}

func TestSend_PermanentSMTPError(t *testing.T) {
	tr := &fakeTransport{errs: []error{&textproto.Error{Code: 550, Msg: "mailbox unavailable"}}}
	m := newTestMailer(t, tr)
	err := m.SendInvitation(context.Background(), domain.InvitationNotice{To: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, 1, tr.calls)
}

func TestSend_GivesUpAfterRetries(t *testing.T) {
	boom := errors.New("boom")
	tr := &fakeTransport{errs: []error{boom, boom, boom, boom, boom}}
	m := newTestMailer(t, tr)
	err := m.SendInvitation(context.Background(), domain.InvitationNotice{To: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, 4, tr.calls)
}

func TestSend_NotConfigured(t *testing.T) {
	m, err := NewWithTransport(&fakeTransport{}, "x@y", false, 0)
	require.NoError(t, err)
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendInvitation(context.Background(), domain.InvitationNotice{To: "a@x.com"}), domain.ErrUpstream)

	var nilMailer *SMTPMailer
	assert.False(t, nilMailer.Configured())
}

func TestSend_EmptyRecipient(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestMailer(t, tr)
	assert.ErrorIs(t, m.SendInvitation(context.Background(), domain.InvitationNotice{}), domain.ErrInvalidArgument)
	assert.Zero(t, tr.calls)
}

func TestNew_ResolvesServiceHost(t *testing.T) {
	m, err := New(config.Config{EmailService: "gmail", EmailUser: "u@gmail.com", EmailPassword: "p", EmailPort: 587})
	require.NoError(t, err)
	assert.True(t, m.Configured())
	tr, ok := m.transport.(SMTPTransport)
	require.True(t, ok)
	assert.Equal(t, "smtp.gmail.com:587", tr.Addr)
	assert.Equal(t, "u@gmail.com", m.from)

	m, err = New(config.Config{EmailHost: "mail.internal", EmailPort: 2525, EmailUser: "u", EmailPassword: "p", EmailFrom: "team@corp"})
	require.NoError(t, err)
	assert.Equal(t, "mail.internal:2525", m.transport.(SMTPTransport).Addr)
	assert.Equal(t, "team@corp", m.from)

	m, err = New(config.Config{})
	require.NoError(t, err)
	assert.False(t, m.Configured())
}

func TestBuildMessage_Headers(t *testing.T) {
	msg := string(buildMessage("from@x", "to@y", "Héllo", []byte("<p>x</p>")))
	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "To: to@y")
	assert.Contains(t, head, "Subject: =?utf-8?q?")
	assert.Equal(t, "<p>x</p>\r\n", body)
}
