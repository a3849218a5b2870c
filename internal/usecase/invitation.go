package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

// Email status strings reported alongside a created invitation.
const (
	EmailStatusSent          = "Invitation email sent successfully"
	EmailStatusFailed        = "Failed to send invitation email, but invitation was created"
	EmailStatusNotConfigured = "Invitation created but email was not sent: Email not configured"
)

// InvitationService is the invitation ledger.
type InvitationService struct {
	Invitations domain.InvitationRepository
	Interviews  domain.InterviewRepository
	Users       domain.UserRepository
	Feedback    domain.FeedbackRepository
	Mailer      domain.Mailer
	Limiter     domain.RateLimiter
	BaseURL     string

	Now      func() time.Time
	NewToken func() (string, error)
	NewID    func() string
}

// NewInvitationService constructs the ledger. mailer and limiter may be nil.
func NewInvitationService(inv domain.InvitationRepository, iv domain.InterviewRepository, users domain.UserRepository, fb domain.FeedbackRepository, mailer domain.Mailer, limiter domain.RateLimiter, baseURL string) InvitationService {
	return InvitationService{
		Invitations: inv, Interviews: iv, Users: users, Feedback: fb,
		Mailer: mailer, Limiter: limiter, BaseURL: strings.TrimRight(baseURL, "/"),
		Now: nowUTC, NewToken: NewInvitationToken, NewID: NewUUID,
	}
}

// CreateInvitationInput is the admin's request to invite a candidate.
type CreateInvitationInput struct {
	InterviewID    string
	RecipientEmail string
	RecipientName  string
	Deadline       string
}

// EmailOutcome reports the best-effort email attempt.
type EmailOutcome struct {
	EmailSent       bool   `json:"emailSent"`
	EmailStatus     string `json:"emailStatus"`
	EmailConfigured bool   `json:"emailConfigured"`
}

// CreateInvitationResult is the persisted invitation plus auxiliary outcomes.
type CreateInvitationResult struct {
	EmailOutcome
	Invitation     domain.Invitation
	Link           string
	AccountCreated bool
	Decision       AccountDecision
}

// ParseDeadline accepts RFC 3339 timestamps and calendar dates (UTC midnight).
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: Invalid deadline format", domain.ErrInvalidArgument)
}

// Create persists a sent invitation, provisioning a temporary account when the
// email is unknown, then attempts the email. Email failure never fails Create.
func (s InvitationService) Create(ctx domain.Context, sender domain.User, in CreateInvitationInput) (CreateInvitationResult, error) {
	lg := observability.LoggerFromContext(ctx)
	email := normalizeEmail(in.RecipientEmail)
	if in.InterviewID == "" || email == "" || strings.TrimSpace(in.Deadline) == "" {
		return CreateInvitationResult{}, fmt.Errorf("%w: Missing required fields", domain.ErrInvalidArgument)
	}
	deadline, err := ParseDeadline(in.Deadline)
	if err != nil {
		return CreateInvitationResult{}, err
	}
	iv, err := s.Interviews.Get(ctx, in.InterviewID)
	if err != nil {
		return CreateInvitationResult{}, fmt.Errorf("op=invitation.create: %w", err)
	}
	if s.Limiter != nil {
		ok, err := s.Limiter.Allow(ctx, "invite:"+sender.ID)
		if err != nil {
			lg.Warn("invitation limiter unavailable", slog.Any("error", err))
		} else if !ok {
			return CreateInvitationResult{}, fmt.Errorf("%w: too many invitations, try again later", domain.ErrRateLimited)
		}
	}

	decision, recipient, err := s.provisionRecipient(ctx, email, in.RecipientName)
	if err != nil {
		return CreateInvitationResult{}, err
	}

	inv := domain.Invitation{
		InterviewID:    iv.ID,
		SenderID:       sender.ID,
		RecipientID:    recipient.ID,
		RecipientEmail: email,
		Status:         domain.InvitationSent,
		Deadline:       &deadline,
		CreatedAt:      s.Now(),
	}
	inv, err = s.insertWithFreshToken(ctx, inv)
	if err != nil {
		return CreateInvitationResult{}, err
	}
	lg.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("interview_id", iv.ID),
		slog.String("recipient_id", recipient.ID),
		slog.String("account_decision", decision.String()))

	res := CreateInvitationResult{
		Invitation:     inv,
		Link:           s.Link(inv),
		AccountCreated: decision == NoAccount,
		Decision:       decision,
	}
	res.EmailOutcome = s.sendInvitationEmail(ctx, sender, recipient, iv, inv, res.Link)
	return res, nil
}

// provisionRecipient resolves the email and creates a temporary account when none exists.
// A concurrent create for the same email is resolved by re-reading.
func (s InvitationService) provisionRecipient(ctx domain.Context, email, name string) (AccountDecision, domain.User, error) {
	decision, u, err := resolveAccount(ctx, s.Users, email)
	if err != nil || decision != NoAccount {
		return decision, u, err
	}
	u = domain.User{
		ID:               s.NewID(),
		Name:             displayNameFor(name, email),
		Email:            email,
		Role:             domain.RoleUser,
		TemporaryAccount: true,
		CreatedAt:        s.Now(),
	}
	err = s.Users.Create(ctx, u)
	if errors.Is(err, domain.ErrConflict) {
		d, existing, rerr := resolveAccount(ctx, s.Users, email)
		if rerr != nil {
			return NoAccount, domain.User{}, rerr
		}
		return d, existing, nil
	}
	if err != nil {
		return NoAccount, domain.User{}, fmt.Errorf("op=invitation.provision_user: %w", err)
	}
	return NoAccount, u, nil
}

func (s InvitationService) insertWithFreshToken(ctx domain.Context, inv domain.Invitation) (domain.Invitation, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		tok, err := s.NewToken()
		if err != nil {
			return domain.Invitation{}, fmt.Errorf("op=invitation.create: %w", err)
		}
		inv.Token = tok
		id, err := s.Invitations.Create(ctx, inv)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.Invitation{}, fmt.Errorf("op=invitation.create: %w", err)
		}
		inv.ID = id
		return inv, nil
	}
	return domain.Invitation{}, fmt.Errorf("op=invitation.create: %w: token collision", domain.ErrConflict)
}

// Link builds the candidate-facing URL for an invitation.
func (s InvitationService) Link(inv domain.Invitation) string {
	return fmt.Sprintf("%s/interview/%s?invitationToken=%s", s.BaseURL, url.PathEscape(inv.InterviewID), url.QueryEscape(inv.Token))
}

func (s InvitationService) sendInvitationEmail(ctx domain.Context, sender, recipient domain.User, iv domain.Interview, inv domain.Invitation, link string) EmailOutcome {
	lg := observability.LoggerFromContext(ctx)
	if s.Mailer == nil || !s.Mailer.Configured() {
		return EmailOutcome{EmailStatus: EmailStatusNotConfigured}
	}
	err := s.Mailer.SendInvitation(ctx, domain.InvitationNotice{
		To:            inv.RecipientEmail,
		RecipientName: displayNameFor(recipient.Name, inv.RecipientEmail),
		SenderName:    displayNameFor(sender.Name, sender.Email),
		Role:          iv.Role,
		Level:         string(iv.Level),
		Link:          link,
		Deadline:      inv.Deadline,
	})
	if err != nil {
		lg.Warn("invitation email failed", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return EmailOutcome{EmailStatus: EmailStatusFailed, EmailConfigured: true}
	}
	return EmailOutcome{EmailSent: true, EmailStatus: EmailStatusSent, EmailConfigured: true}
}

// Resend retries the email for an existing invitation.
func (s InvitationService) Resend(ctx domain.Context, requester domain.User, invitationID string) (EmailOutcome, error) {
	inv, err := s.Invitations.Get(ctx, invitationID)
	if err != nil {
		return EmailOutcome{}, fmt.Errorf("op=invitation.resend: %w", err)
	}
	if inv.SenderID != requester.ID && !requester.IsAdmin() {
		return EmailOutcome{}, fmt.Errorf("%w: not the sender of this invitation", domain.ErrForbidden)
	}
	if inv.Status == domain.InvitationCompleted {
		return EmailOutcome{}, fmt.Errorf("%w: invitation already completed", domain.ErrConflict)
	}
	iv, err := s.Interviews.Get(ctx, inv.InterviewID)
	if err != nil {
		return EmailOutcome{}, fmt.Errorf("op=invitation.resend: %w", err)
	}
	recipient, err := s.Users.Get(ctx, inv.RecipientID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return EmailOutcome{}, fmt.Errorf("op=invitation.resend: %w", err)
	}
	return s.sendInvitationEmail(ctx, requester, recipient, iv, inv, s.Link(inv)), nil
}

// VerifyToken resolves a token scoped to one interview.
func (s InvitationService) VerifyToken(ctx domain.Context, interviewID, token string) (domain.Invitation, error) {
	if interviewID == "" || token == "" {
		return domain.Invitation{}, fmt.Errorf("op=invitation.verify_token: %w", domain.ErrNotFound)
	}
	inv, err := s.Invitations.FindByToken(ctx, interviewID, token)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("op=invitation.verify_token: %w", err)
	}
	if inv.InterviewID != interviewID || inv.Token != token {
		return domain.Invitation{}, fmt.Errorf("op=invitation.verify_token: %w", domain.ErrNotFound)
	}
	return inv, nil
}

// GetUserInvitation returns the user's standing invitation to an interview.
func (s InvitationService) GetUserInvitation(ctx domain.Context, interviewID, userID string) (domain.Invitation, error) {
	inv, err := s.Invitations.FindByRecipient(ctx, interviewID, userID)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("op=invitation.get_user: %w", err)
	}
	return inv, nil
}

// Advance moves an invitation forward. Repeating the current status is a no-op;
// moving backwards is ErrConflict.
func (s InvitationService) Advance(ctx domain.Context, id string, to domain.InvitationStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, to)
	}
	changed, err := s.Invitations.Advance(ctx, id, to, s.Now())
	if err != nil {
		return fmt.Errorf("op=invitation.advance: %w", err)
	}
	if changed {
		return nil
	}
	cur, err := s.Invitations.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("op=invitation.advance: %w", err)
	}
	if cur.Status == to {
		return nil
	}
	return fmt.Errorf("op=invitation.advance: %w: cannot move %s to %s", domain.ErrConflict, cur.Status, to)
}

// ReceivedInvitation is an invitation enriched for the recipient's inbox.
type ReceivedInvitation struct {
	Invitation domain.Invitation   `json:"invitation"`
	Interview  domain.Interview    `json:"interview"`
	Sender     *domain.UserSummary `json:"sender"`
}

// ListReceived returns invitations addressed to userID, newest first. Entries
// whose interview no longer resolves are dropped.
func (s InvitationService) ListReceived(ctx domain.Context, userID string) ([]ReceivedInvitation, error) {
	invs, err := s.Invitations.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=invitation.list_received: %w", err)
	}
	sortNewestFirst(invs)
	out := make([]ReceivedInvitation, 0, len(invs))
	senders := map[string]*domain.UserSummary{}
	for _, inv := range invs {
		iv, err := s.Interviews.Get(ctx, inv.InterviewID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("op=invitation.list_received: %w", err)
		}
		sender, err := s.summary(ctx, senders, inv.SenderID)
		if err != nil {
			return nil, fmt.Errorf("op=invitation.list_received: %w", err)
		}
		out = append(out, ReceivedInvitation{Invitation: inv, Interview: iv, Sender: sender})
	}
	return out, nil
}

// SentInvitation is an invitation enriched with its recipient.
type SentInvitation struct {
	domain.Invitation
	Recipient *domain.UserSummary `json:"recipient"`
}

// ListSent returns invitations sent by userID (default: requester), newest first.
func (s InvitationService) ListSent(ctx domain.Context, requester domain.User, userID string) ([]SentInvitation, error) {
	if userID == "" {
		userID = requester.ID
	}
	if userID != requester.ID && !requester.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot view another user's invitations", domain.ErrForbidden)
	}
	invs, err := s.Invitations.ListBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=invitation.list_sent: %w", err)
	}
	sortNewestFirst(invs)
	out := make([]SentInvitation, 0, len(invs))
	cache := map[string]*domain.UserSummary{}
	for _, inv := range invs {
		rcpt, err := s.summary(ctx, cache, inv.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("op=invitation.list_sent: %w", err)
		}
		out = append(out, SentInvitation{Invitation: inv, Recipient: rcpt})
	}
	return out, nil
}

// CandidateRow is one line of an interview's candidate table.
type CandidateRow struct {
	InvitationID string                  `json:"invitationId"`
	Candidate    *domain.UserSummary     `json:"candidate"`
	Email        string                  `json:"email"`
	Status       domain.InvitationStatus `json:"status"`
	Score        *float64                `json:"score"`
	ScoreLabel   string                  `json:"scoreLabel,omitempty"`
	FeedbackID   string                  `json:"feedbackId,omitempty"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
	Deadline     *time.Time              `json:"deadline,omitempty"`
}

// Candidates lists every invited candidate for an interview with their feedback score.
func (s InvitationService) Candidates(ctx domain.Context, interviewID string) ([]CandidateRow, error) {
	if _, err := s.Interviews.Get(ctx, interviewID); err != nil {
		return nil, fmt.Errorf("op=invitation.candidates: %w", err)
	}
	invs, err := s.Invitations.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("op=invitation.candidates: %w", err)
	}
	sortNewestFirst(invs)
	fbs, err := s.Feedback.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("op=invitation.candidates: %w", err)
	}
	byUser := make(map[string]domain.Feedback, len(fbs))
	for _, f := range fbs {
		byUser[f.UserID] = f
	}
	cache := map[string]*domain.UserSummary{}
	out := make([]CandidateRow, 0, len(invs))
	for _, inv := range invs {
		cand, err := s.summary(ctx, cache, inv.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("op=invitation.candidates: %w", err)
		}
		row := CandidateRow{
			InvitationID: inv.ID,
			Candidate:    cand,
			Email:        inv.RecipientEmail,
			Status:       inv.Status,
			CompletedAt:  inv.CompletedAt,
			Deadline:     inv.Deadline,
		}
		if f, ok := byUser[inv.RecipientID]; ok {
			row.Score = ptr(f.TotalScore)
			row.ScoreLabel = ScoreLabel(f.TotalScore)
			row.FeedbackID = f.ID
		}
		out = append(out, row)
	}
	return out, nil
}

func (s InvitationService) summary(ctx domain.Context, cache map[string]*domain.UserSummary, id string) (*domain.UserSummary, error) {
	if v, ok := cache[id]; ok {
		return v, nil
	}
	u, err := s.Users.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum := u.Summary()
	cache[id] = &sum
	return &sum, nil
}

func sortNewestFirst(invs []domain.Invitation) {
	sort.SliceStable(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
}
