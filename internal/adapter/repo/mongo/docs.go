package mongo

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// Stored documents are validated on every read so a malformed record surfaces
// as an error here instead of a half-filled entity in the services.

var (
	docValidatorOnce sync.Once
	docValidator     *validator.Validate
)

func validateDoc(kind string, v any) error {
	docValidatorOnce.Do(func() { docValidator = validator.New() })
	if err := docValidator.Struct(v); err != nil {
		return fmt.Errorf("%w: stored %s document: %v", domain.ErrInternal, kind, err)
	}
	return nil
}

type interviewDoc struct {
	ID             string    `bson:"_id" validate:"required"`
	Role           string    `bson:"role" validate:"required"`
	Level          string    `bson:"level"`
	Type           string    `bson:"type"`
	Questions      []string  `bson:"questions"`
	TechStack      []string  `bson:"techStack"`
	Rubric         string    `bson:"rubric"`
	CreatedBy      string    `bson:"createdBy"`
	IsAdminCreated bool      `bson:"isAdminCreated"`
	Finalized      bool      `bson:"finalized"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func fromInterview(iv domain.Interview) interviewDoc {
	return interviewDoc{
		ID: iv.ID, Role: iv.Role, Level: string(iv.Level), Type: string(iv.Type),
		Questions: nonNil(iv.Questions), TechStack: nonNil(iv.TechStack), Rubric: iv.Rubric,
		CreatedBy: iv.CreatedBy, IsAdminCreated: iv.IsAdminCreated, Finalized: iv.Finalized,
		CreatedAt: iv.CreatedAt.UTC(),
	}
}

func (d interviewDoc) toDomain() (domain.Interview, error) {
	if err := validateDoc("interview", d); err != nil {
		return domain.Interview{}, err
	}
	return domain.Interview{
		ID: d.ID, Role: d.Role, Level: domain.Level(d.Level), Type: domain.InterviewType(d.Type),
		Questions: d.Questions, TechStack: d.TechStack, Rubric: d.Rubric, CreatedBy: d.CreatedBy,
		IsAdminCreated: d.IsAdminCreated, Finalized: d.Finalized, CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

type invitationDoc struct {
	ID             string     `bson:"_id" validate:"required"`
	InterviewID    string     `bson:"interviewId" validate:"required"`
	SenderID       string     `bson:"senderId"`
	RecipientID    string     `bson:"recipientId" validate:"required"`
	RecipientEmail string     `bson:"recipientEmail"`
	Status         string     `bson:"status" validate:"oneof=pending sent accepted completed"`
	Token          string     `bson:"invitationToken" validate:"required"`
	Deadline       *time.Time `bson:"deadline,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
	CompletedAt    *time.Time `bson:"completedAt,omitempty"`
}

func fromInvitation(inv domain.Invitation) invitationDoc {
	return invitationDoc{
		ID: inv.ID, InterviewID: inv.InterviewID, SenderID: inv.SenderID, RecipientID: inv.RecipientID,
		RecipientEmail: inv.RecipientEmail, Status: string(inv.Status), Token: inv.Token,
		Deadline: utcPtr(inv.Deadline), CreatedAt: inv.CreatedAt.UTC(), CompletedAt: utcPtr(inv.CompletedAt),
	}
}

func (d invitationDoc) toDomain() (domain.Invitation, error) {
	if err := validateDoc("invitation", d); err != nil {
		return domain.Invitation{}, err
	}
	return domain.Invitation{
		ID: d.ID, InterviewID: d.InterviewID, SenderID: d.SenderID, RecipientID: d.RecipientID,
		RecipientEmail: d.RecipientEmail, Status: domain.InvitationStatus(d.Status), Token: d.Token,
		Deadline: utcPtr(d.Deadline), CreatedAt: d.CreatedAt.UTC(), CompletedAt: utcPtr(d.CompletedAt),
	}, nil
}

type userDoc struct {
	ID               string    `bson:"_id" validate:"required"`
	Name             string    `bson:"name"`
	Email            string    `bson:"email" validate:"required"`
	EmailLower       string    `bson:"emailLower"`
	Role             string    `bson:"role" validate:"oneof=user admin"`
	TemporaryAccount bool      `bson:"temporaryAccount"`
	CreatedAt        time.Time `bson:"createdAt"`
}

func fromUser(u domain.User) userDoc {
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	return userDoc{
		ID: u.ID, Name: u.Name, Email: u.Email, EmailLower: strings.ToLower(strings.TrimSpace(u.Email)),
		Role: string(role), TemporaryAccount: u.TemporaryAccount, CreatedAt: u.CreatedAt.UTC(),
	}
}

func (d userDoc) toDomain() (domain.User, error) {
	if err := validateDoc("user", d); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID: d.ID, Name: d.Name, Email: d.Email, Role: domain.Role(d.Role),
		TemporaryAccount: d.TemporaryAccount, CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

type messageDoc struct {
	ID          string    `bson:"_id" validate:"required"`
	InterviewID string    `bson:"interviewId" validate:"required"`
	SenderID    string    `bson:"senderId"`
	SenderType  string    `bson:"senderType" validate:"oneof=user assistant"`
	Content     string    `bson:"content"`
	Timestamp   time.Time `bson:"timestamp"`
}

func fromMessage(m domain.ChatMessage) messageDoc {
	return messageDoc{ID: m.ID, InterviewID: m.InterviewID, SenderID: m.SenderID,
		SenderType: string(m.SenderType), Content: m.Content, Timestamp: m.Timestamp.UTC()}
}

func (d messageDoc) toDomain() (domain.ChatMessage, error) {
	if err := validateDoc("message", d); err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{ID: d.ID, InterviewID: d.InterviewID, SenderID: d.SenderID,
		SenderType: domain.SenderType(d.SenderType), Content: d.Content, Timestamp: d.Timestamp.UTC()}, nil
}

type categoryDoc struct {
	Name    string  `bson:"name" validate:"required"`
	Score   float64 `bson:"score" validate:"gte=0,lte=100"`
	Comment string  `bson:"comment"`
}

type feedbackDoc struct {
	ID                  string        `bson:"_id" validate:"required"`
	InterviewID         string        `bson:"interviewId" validate:"required"`
	UserID              string        `bson:"userId" validate:"required"`
	TotalScore          float64       `bson:"totalScore" validate:"gte=0,lte=100"`
	CategoryScores      []categoryDoc `bson:"categoryScores" validate:"len=5,dive"`
	Strengths           []string      `bson:"strengths"`
	AreasForImprovement []string      `bson:"areasForImprovement"`
	FinalAssessment     string        `bson:"finalAssessment"`
	CreatedAt           time.Time     `bson:"createdAt"`
}

func fromFeedback(f domain.Feedback) feedbackDoc {
	cats := make([]categoryDoc, len(f.CategoryScores))
	for i, c := range f.CategoryScores {
		cats[i] = categoryDoc{Name: c.Name, Score: c.Score, Comment: c.Comment}
	}
	return feedbackDoc{
		ID: f.ID, InterviewID: f.InterviewID, UserID: f.UserID, TotalScore: f.TotalScore, CategoryScores: cats,
		Strengths: nonNil(f.Strengths), AreasForImprovement: nonNil(f.AreasForImprovement),
		FinalAssessment: f.FinalAssessment, CreatedAt: f.CreatedAt.UTC(),
	}
}

func (d feedbackDoc) toDomain() (domain.Feedback, error) {
	if err := validateDoc("feedback", d); err != nil {
		return domain.Feedback{}, err
	}
	cats := make([]domain.CategoryScore, len(d.CategoryScores))
	for i, c := range d.CategoryScores {
		cats[i] = domain.CategoryScore{Name: c.Name, Score: c.Score, Comment: c.Comment}
	}
	return domain.Feedback{
		ID: d.ID, InterviewID: d.InterviewID, UserID: d.UserID, TotalScore: d.TotalScore, CategoryScores: cats,
		Strengths: d.Strengths, AreasForImprovement: d.AreasForImprovement,
		FinalAssessment: d.FinalAssessment, CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

type jobDoc struct {
	ID          string    `bson:"_id" validate:"required"`
	InterviewID string    `bson:"interviewId"`
	UserID      string    `bson:"userId"`
	FeedbackID  string    `bson:"feedbackId"`
	Status      string    `bson:"status" validate:"oneof=queued processing completed failed"`
	Error       string    `bson:"error"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func fromJob(j domain.FeedbackJob) jobDoc {
	return jobDoc{ID: j.ID, InterviewID: j.InterviewID, UserID: j.UserID, FeedbackID: j.FeedbackID,
		Status: string(j.Status), Error: j.Error, CreatedAt: j.CreatedAt.UTC(), UpdatedAt: j.UpdatedAt.UTC()}
}

func (d jobDoc) toDomain() (domain.FeedbackJob, error) {
	if err := validateDoc("feedback job", d); err != nil {
		return domain.FeedbackJob{}, err
	}
	return domain.FeedbackJob{ID: d.ID, InterviewID: d.InterviewID, UserID: d.UserID, FeedbackID: d.FeedbackID,
		Status: domain.JobStatus(d.Status), Error: d.Error, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC()}, nil
}

// identityDoc is keyed by the lowercased email.
type identityDoc struct {
	Email        string    `bson:"_id" validate:"required"`
	Subject      string    `bson:"subject" validate:"required"`
	PasswordHash string    `bson:"passwordHash" validate:"required"`
	Disabled     bool      `bson:"disabled"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d identityDoc) toDomain() (domain.Identity, error) {
	if err := validateDoc("identity", d); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Subject: d.Subject, Email: d.Email, PasswordHash: d.PasswordHash,
		Disabled: d.Disabled, CreatedAt: d.CreatedAt.UTC()}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
