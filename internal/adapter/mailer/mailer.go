// Package mailer renders and delivers transactional email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	metrics "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

const senderDisplayName = "AI Mock Interviews"

// well-known EMAIL_SERVICE names
var serviceHosts = map[string]string{
	"gmail":   "smtp.gmail.com",
	"outlook": "smtp-mail.outlook.com",
	"hotmail": "smtp-mail.outlook.com",
	"yahoo":   "smtp.mail.yahoo.com",
	"zoho":    "smtp.zoho.com",
}

// Transport delivers one fully rendered message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPTransport sends through net/smtp with PLAIN auth.
type SMTPTransport struct {
	Addr string
	Host string
	Auth smtp.Auth
}

// Send runs smtp.SendMail and gives up when ctx ends.
func (t SMTPTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(t.Addr, t.Auth, from, to, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SMTPMailer implements domain.Mailer.
type SMTPMailer struct {
	transport  Transport
	from       string
	configured bool
	timeout    time.Duration
	invitation *template.Template
	feedback   *template.Template
	newBackOff func() backoff.BackOff
}

// New builds a mailer from configuration. An unconfigured mailer reports
// Configured() == false and refuses to send.
func New(cfg config.Config) (*SMTPMailer, error) {
	host := cfg.EmailHost
	if host == "" {
		host = serviceHosts[strings.ToLower(cfg.EmailService)]
	}
	if host == "" && cfg.EmailService != "" {
		host = "smtp." + strings.ToLower(cfg.EmailService) + ".com"
	}
	port := cfg.EmailPort
	if port == 0 {
		port = 587
	}
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.EmailUser
	}
	t := SMTPTransport{
		Addr: net.JoinHostPort(host, strconv.Itoa(port)),
		Host: host,
		Auth: smtp.PlainAuth("", cfg.EmailUser, cfg.EmailPassword, host),
	}
	return NewWithTransport(t, from, cfg.EmailConfigured(), cfg.EmailSendTimeout)
}

// NewWithTransport builds a mailer around an arbitrary transport.
func NewWithTransport(t Transport, from string, configured bool, timeout time.Duration) (*SMTPMailer, error) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	inv, err := template.ParseFS(templateFS, "templates/layout.html", "templates/invitation.html")
	if err != nil {
		return nil, fmt.Errorf("op=mailer.new: %w", err)
	}
	fb, err := template.ParseFS(templateFS, "templates/layout.html", "templates/feedback.html")
	if err != nil {
		return nil, fmt.Errorf("op=mailer.new: %w", err)
	}
	m := &SMTPMailer{
		transport:  t,
		from:       from,
		configured: configured && t != nil,
		timeout:    timeout,
		invitation: inv,
		feedback:   fb,
	}
	m.newBackOff = func() backoff.BackOff {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = 500 * time.Millisecond
		expo.MaxInterval = 5 * time.Second
		expo.MaxElapsedTime = m.timeout
		return expo
	}
	return m, nil
}

// Configured reports whether delivery can be attempted.
func (m *SMTPMailer) Configured() bool { return m != nil && m.configured }

// SendInvitation renders and sends the invitation email.
func (m *SMTPMailer) SendInvitation(ctx domain.Context, n domain.InvitationNotice) error {
	body, err := render(m.invitation, n)
	if err != nil {
		return fmt.Errorf("op=mailer.send_invitation: %w", err)
	}
	subject := fmt.Sprintf("Mock Interview Invitation from %s", n.SenderName)
	if err := m.send(ctx, "invitation", n.To, subject, body); err != nil {
		return fmt.Errorf("op=mailer.send_invitation: %w", err)
	}
	return nil
}

// SendFeedbackReady renders and sends the feedback-available email.
func (m *SMTPMailer) SendFeedbackReady(ctx domain.Context, n domain.FeedbackNotice) error {
	body, err := render(m.feedback, n)
	if err != nil {
		return fmt.Errorf("op=mailer.send_feedback: %w", err)
	}
	if err := m.send(ctx, "feedback", n.To, "Interview Feedback Available", body); err != nil {
		return fmt.Errorf("op=mailer.send_feedback: %w", err)
	}
	return nil
}

func render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// send delivers with exponential backoff bounded by the configured timeout.
// 5xx SMTP replies are permanent.
func (m *SMTPMailer) send(ctx domain.Context, kind, to, subject string, html []byte) error {
	if !m.Configured() {
		metrics.RecordEmail(kind, "skipped")
		return fmt.Errorf("%w: email not configured", domain.ErrUpstream)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: empty recipient", domain.ErrInvalidArgument)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg := buildMessage(m.from, to, subject, html)
	lg := observability.LoggerFromContext(ctx)
	attempt := 0
	op := func() error {
		attempt++
		err := m.transport.Send(ctx, m.from, []string{to}, msg)
		if err == nil {
			return nil
		}
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code >= 500 {
			return backoff.Permanent(err)
		}
		lg.Warn("email send attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
		metrics.RecordEmail(kind, "failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	metrics.RecordEmail(kind, "sent")
	return nil
}

func buildMessage(from, to, subject string, html []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", senderDisplayName), from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.Write(html)
	b.WriteString("\r\n")
	return b.Bytes()
}
