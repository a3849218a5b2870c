package domain

import (
	"context"
	"time"
)

// Role is the coarse permission level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Level is the seniority an interview targets.
type Level string

const (
	LevelEntry  Level = "Entry"
	LevelMid    Level = "Mid"
	LevelSenior Level = "Senior"
)

// InterviewType is the canonical interview category.
type InterviewType string

const (
	TypeTechnical    InterviewType = "Technical"
	TypeNonTechnical InterviewType = "Non-Technical"
	TypeMixed        InterviewType = "Mixed"
)

// Interview is an interview definition. Only Finalized changes after creation.
type Interview struct {
	ID             string        `json:"id"`
	Role           string        `json:"role"`
	Level          Level         `json:"level"`
	Type           InterviewType `json:"type"`
	Questions      []string      `json:"questions"`
	TechStack      []string      `json:"techStack"`
	Rubric         string        `json:"rubric"`
	CreatedBy      string        `json:"createdBy"`
	IsAdminCreated bool          `json:"isAdminCreated"`
	Finalized      bool          `json:"finalized"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationSent      InvitationStatus = "sent"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationCompleted InvitationStatus = "completed"
)

func (s InvitationStatus) rank() int {
	switch s {
	case InvitationPending, InvitationSent:
		return 0
	case InvitationAccepted:
		return 1
	case InvitationCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s InvitationStatus) Valid() bool { return s.rank() >= 0 }

// Predecessors returns the statuses an invitation may advance to s from.
// pending and sent share a rank, so neither is a predecessor of the other.
func (s InvitationStatus) Predecessors() []InvitationStatus {
	r := s.rank()
	var out []InvitationStatus
	for _, c := range []InvitationStatus{InvitationPending, InvitationSent, InvitationAccepted, InvitationCompleted} {
		if c.rank() < r {
			out = append(out, c)
		}
	}
	return out
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
func (s InvitationStatus) CanAdvanceTo(next InvitationStatus) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

// Invitation grants a recipient access to an admin-created interview.
// Token is unique across all invitations.
type Invitation struct {
	ID             string           `json:"id"`
	InterviewID    string           `json:"interviewId"`
	SenderID       string           `json:"senderId"`
	RecipientID    string           `json:"recipientId"`
	RecipientEmail string           `json:"recipientEmail"`
	Status         InvitationStatus `json:"status"`
	Token          string           `json:"invitationToken"`
	Deadline       *time.Time       `json:"deadline,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// User is an application account. A temporary account is a placeholder for an
// invited email and is converted to permanent exactly once.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	TemporaryAccount bool      `json:"temporaryAccount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IsAdmin reports whether u holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserSummary is the public projection used to enrich listings.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary { return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email} }

// SenderType identifies who produced a chat turn.
type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderAssistant SenderType = "assistant"
)

// ChatMessage is one append-only turn of an interview session.
type ChatMessage struct {
	ID          string     `json:"id"`
	InterviewID string     `json:"interviewId"`
	SenderID    string     `json:"senderId"`
	SenderType  SenderType `json:"senderType"`
	Content     string     `json:"content"`
	Timestamp   time.Time  `json:"timestamp"`
}

// TranscriptTurn is the role/content pair rendered into the grading prompt.
type TranscriptTurn struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CategoryScore is one of the fixed evaluation dimensions.
type CategoryScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Feedback is the structured evaluation for one candidate on one interview.
// At most one exists per (InterviewID, UserID).
type Feedback struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interviewId"`
	UserID              string          `json:"userId"`
	TotalScore          float64         `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// JobStatus tracks asynchronous feedback generation.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// FeedbackJob records one asynchronous generateFeedback invocation.
type FeedbackJob struct {
	ID          string    `json:"id"`
	InterviewID string    `json:"interviewId"`
	UserID      string    `json:"userId"`
	FeedbackID  string    `json:"feedbackId,omitempty"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FeedbackTaskPayload is the queued unit of work for the feedback worker.
type FeedbackTaskPayload struct {
	JobID       string           `json:"jobId"`
	InterviewID string           `json:"interviewId"`
	UserID      string           `json:"userId"`
	FeedbackID  string           `json:"feedbackId,omitempty"`
	Transcript  []TranscriptTurn `json:"transcript,omitempty"`
	RequestID   string           `json:"requestId,omitempty"`
}

// InterviewFilter is the composable listFiltered query. Empty fields impose no constraint.
// Dates are calendar days (YYYY-MM-DD).
type InterviewFilter struct {
	Role     string
	Type     string
	DateFrom string
	DateTo   string
}

// UserQuery selects a page of users.
type UserQuery struct {
	EmailPrefix  string
	Limit        int
	Page         int
	StartAfterID string
}

// UserPage is one page of users plus the total matching count.
type UserPage struct {
	Users []User
	Total int
}

// Identity is a credential record held by the Auth Service.
type Identity struct {
	Subject      string
	Email        string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
}

// Context is an alias so ports do not leak the std import into every caller.
type Context = context.Context
