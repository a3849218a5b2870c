package domain

import "time"

// Repositories (ports)

type InterviewRepository interface {
	Create(ctx Context, iv Interview) (string, error)
	Get(ctx Context, id string) (Interview, error)
	ListAll(ctx Context) ([]Interview, error)
	ListAdminCreated(ctx Context) ([]Interview, error)
	ListByCreator(ctx Context, userID string) ([]Interview, error)
	ListFinalized(ctx Context, excludeUserID string, limit int) ([]Interview, error)
	SetFinalized(ctx Context, id string, finalized bool) error
}

type InvitationRepository interface {
	Create(ctx Context, inv Invitation) (string, error)
	Get(ctx Context, id string) (Invitation, error)
	// FindByToken is scoped jointly by interview and token.
	FindByToken(ctx Context, interviewID, token string) (Invitation, error)
	// FindByRecipient returns the newest invitation for the pair.
	FindByRecipient(ctx Context, interviewID, recipientID string) (Invitation, error)
	ListByRecipient(ctx Context, userID string) ([]Invitation, error)
	ListBySender(ctx Context, userID string) ([]Invitation, error)
	ListByInterview(ctx Context, interviewID string) ([]Invitation, error)
	// Advance moves the invitation forward only; it reports whether a row changed.
	Advance(ctx Context, id string, to InvitationStatus, at time.Time) (bool, error)
}

type UserRepository interface {
	Create(ctx Context, u User) error
	Get(ctx Context, id string) (User, error)
	FindByEmail(ctx Context, email string) (User, error)
	// ConvertTemporary flips temporaryAccount to false; ErrConflict if already permanent.
	ConvertTemporary(ctx Context, id, name string) error
	List(ctx Context, q UserQuery) (UserPage, error)
	SearchByEmailPrefix(ctx Context, prefix string, limit int) ([]User, error)
}

type TranscriptRepository interface {
	Append(ctx Context, m ChatMessage) error
	// ListByInterview returns messages in storage order; callers sort.
	ListByInterview(ctx Context, interviewID string) ([]ChatMessage, error)
}

type FeedbackRepository interface {
	// Upsert inserts or overwrites the document keyed by f.ID.
	Upsert(ctx Context, f Feedback) error
	Get(ctx Context, id string) (Feedback, error)
	FindByInterviewAndUser(ctx Context, interviewID, userID string) (Feedback, error)
	ListByInterview(ctx Context, interviewID string) ([]Feedback, error)
}

type FeedbackJobRepository interface {
	Create(ctx Context, j FeedbackJob) (string, error)
	Get(ctx Context, id string) (FeedbackJob, error)
	UpdateStatus(ctx Context, id string, status JobStatus, errMsg *string) error
	SetFeedbackID(ctx Context, id, feedbackID string) error
	FailStale(ctx Context, olderThan time.Time, reason string) (int64, error)
	PurgeFinished(ctx Context, before time.Time) (int64, error)
}

type IdentityRepository interface {
	CreateIdentity(ctx Context, id Identity) error
	GetIdentityByEmail(ctx Context, email string) (Identity, error)
	// RebindIdentity points the credential for email at subject and returns the previous subject.
	RebindIdentity(ctx Context, email, subject string) (string, error)
	DisableIdentity(ctx Context, subject string) error
}

// External collaborators (ports)

// CompletionClient is the opaque Completion Service.
type CompletionClient interface {
	Complete(ctx Context, systemPrompt, userPrompt string) (string, error)
}

// InvitationNotice is the data rendered into an invitation email.
type InvitationNotice struct {
	To            string
	RecipientName string
	SenderName    string
	Role          string
	Level         string
	Link          string
	Deadline      *time.Time
}

// FeedbackNotice is the data rendered into a feedback-available email.
type FeedbackNotice struct {
	To            string
	CandidateName string
	Role          string
	TotalScore    float64
	ScoreLabel    string
	Link          string
}

// Mailer renders and delivers outbound email. Send errors are reported, never retried by callers.
type Mailer interface {
	Configured() bool
	SendInvitation(ctx Context, n InvitationNotice) error
	SendFeedbackReady(ctx Context, n FeedbackNotice) error
}

// Queue carries feedback jobs to the worker.
type Queue interface {
	EnqueueFeedback(ctx Context, payload FeedbackTaskPayload) (string, error)
}

// IdentityProvider is the Auth Service credential surface.
type IdentityProvider interface {
	Register(ctx Context, email, password string) (string, error)
	Authenticate(ctx Context, email, password string) (string, error)
	Rebind(ctx Context, email, subject string) (string, error)
	Deactivate(ctx Context, subject string) error
}

// SessionManager issues and resolves session tokens.
type SessionManager interface {
	Issue(ctx Context, subject string) (string, time.Time, error)
	Verify(ctx Context, token string) (string, error)
	Revoke(ctx Context, token string) error
}

// RateLimiter admits or rejects an action for a key.
type RateLimiter interface {
	Allow(ctx Context, key string) (bool, error)
}
