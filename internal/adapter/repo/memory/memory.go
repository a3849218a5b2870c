// Package memory is an in-process Document Store used for local runs and tests.
// It mirrors the uniqueness and ordering rules of the persistent backends.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

func notFound(op string) error { return fmt.Errorf("op=%s: %w", op, domain.ErrNotFound) }

func wrap(err error, op string) error { return fmt.Errorf("op=%s: %w", op, err) }

// InterviewRepo stores interviews.
type InterviewRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.Interview
}

func NewInterviewRepo() *InterviewRepo { return &InterviewRepo{rows: map[string]domain.Interview{}} }

func (r *InterviewRepo) Create(_ domain.Context, iv domain.Interview) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if _, ok := r.rows[iv.ID]; ok {
		return "", wrap(domain.ErrConflict, "interview.create")
	}
	r.rows[iv.ID] = cloneInterview(iv)
	return iv.ID, nil
}

func (r *InterviewRepo) Get(_ domain.Context, id string) (domain.Interview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iv, ok := r.rows[id]
	if !ok {
		return domain.Interview{}, notFound("interview.get")
	}
	return cloneInterview(iv), nil
}

func (r *InterviewRepo) list(keep func(domain.Interview) bool) []domain.Interview {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Interview, 0, len(r.rows))
	for _, iv := range r.rows {
		if keep(iv) {
			out = append(out, cloneInterview(iv))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *InterviewRepo) ListAll(_ domain.Context) ([]domain.Interview, error) {
	return r.list(func(domain.Interview) bool { return true }), nil
}

func (r *InterviewRepo) ListAdminCreated(_ domain.Context) ([]domain.Interview, error) {
	return r.list(func(iv domain.Interview) bool { return iv.IsAdminCreated }), nil
}

func (r *InterviewRepo) ListByCreator(_ domain.Context, userID string) ([]domain.Interview, error) {
	return r.list(func(iv domain.Interview) bool { return iv.CreatedBy == userID }), nil
}

func (r *InterviewRepo) ListFinalized(_ domain.Context, excludeUserID string, limit int) ([]domain.Interview, error) {
	out := r.list(func(iv domain.Interview) bool { return iv.Finalized && iv.CreatedBy != excludeUserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InterviewRepo) SetFinalized(_ domain.Context, id string, finalized bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.rows[id]
	if !ok {
		return notFound("interview.set_finalized")
	}
	iv.Finalized = finalized
	r.rows[id] = iv
	return nil
}

func cloneInterview(iv domain.Interview) domain.Interview {
	iv.Questions = append([]string(nil), iv.Questions...)
	iv.TechStack = append([]string(nil), iv.TechStack...)
	return iv
}

// InvitationRepo stores invitations; tokens are unique.
type InvitationRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.Invitation
}

func NewInvitationRepo() *InvitationRepo { return &InvitationRepo{rows: map[string]domain.Invitation{}} }

func (r *InvitationRepo) Create(_ domain.Context, inv domain.Invitation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Token == inv.Token {
			return "", wrap(domain.ErrConflict, "invitation.create")
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	r.rows[inv.ID] = inv
	return inv.ID, nil
}

func (r *InvitationRepo) Get(_ domain.Context, id string) (domain.Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.rows[id]
	if !ok {
		return domain.Invitation{}, notFound("invitation.get")
	}
	return inv, nil
}

func (r *InvitationRepo) first(keep func(domain.Invitation) bool, op string) (domain.Invitation, error) {
	out := r.list(keep)
	if len(out) == 0 {
		return domain.Invitation{}, notFound(op)
	}
	return out[0], nil
}

func (r *InvitationRepo) list(keep func(domain.Invitation) bool) []domain.Invitation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Invitation, 0)
	for _, inv := range r.rows {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *InvitationRepo) FindByToken(_ domain.Context, interviewID, token string) (domain.Invitation, error) {
	return r.first(func(inv domain.Invitation) bool {
		return inv.InterviewID == interviewID && inv.Token == token
	}, "invitation.find_by_token")
}

func (r *InvitationRepo) FindByRecipient(_ domain.Context, interviewID, recipientID string) (domain.Invitation, error) {
	return r.first(func(inv domain.Invitation) bool {
		return inv.InterviewID == interviewID && inv.RecipientID == recipientID
	}, "invitation.find_by_recipient")
}

func (r *InvitationRepo) ListByRecipient(_ domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(func(inv domain.Invitation) bool { return inv.RecipientID == userID }), nil
}

func (r *InvitationRepo) ListBySender(_ domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(func(inv domain.Invitation) bool { return inv.SenderID == userID }), nil
}

func (r *InvitationRepo) ListByInterview(_ domain.Context, interviewID string) ([]domain.Invitation, error) {
	return r.list(func(inv domain.Invitation) bool { return inv.InterviewID == interviewID }), nil
}

func (r *InvitationRepo) Advance(_ domain.Context, id string, to domain.InvitationStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[id]
	if !ok {
		return false, notFound("invitation.advance")
	}
	if !inv.Status.CanAdvanceTo(to) {
		return false, nil
	}
	inv.Status = to
	if to == domain.InvitationCompleted {
		t := at
		inv.CompletedAt = &t
	}
	r.rows[id] = inv
	return true, nil
}

// UserRepo stores users; emails are unique.
type UserRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.User
}

func NewUserRepo() *UserRepo { return &UserRepo{rows: map[string]domain.User{}} }

func (r *UserRepo) Create(_ domain.Context, u domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[u.ID]; ok {
		return wrap(domain.ErrConflict, "user.create")
	}
	for _, existing := range r.rows {
		if strings.EqualFold(existing.Email, u.Email) {
			return wrap(domain.ErrConflict, "user.create")
		}
	}
	r.rows[u.ID] = u
	return nil
}

func (r *UserRepo) Get(_ domain.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	if !ok {
		return domain.User{}, notFound("user.get")
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(_ domain.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, notFound("user.find_by_email")
}

func (r *UserRepo) ConvertTemporary(_ domain.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return notFound("user.convert")
	}
	if !u.TemporaryAccount {
		return wrap(domain.ErrConflict, "user.convert")
	}
	u.TemporaryAccount = false
	if name != "" {
		u.Name = name
	}
	r.rows[id] = u
	return nil
}

func (r *UserRepo) sorted(prefix string) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.rows))
	for _, u := range r.rows {
		if strings.HasPrefix(strings.ToLower(u.Email), prefix) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email == out[j].Email {
			return out[i].ID < out[j].ID
		}
		return out[i].Email < out[j].Email
	})
	return out
}

func (r *UserRepo) List(_ domain.Context, q domain.UserQuery) (domain.UserPage, error) {
	all := r.sorted(q.EmailPrefix)
	start := (q.Page - 1) * q.Limit
	if q.StartAfterID != "" {
		start = len(all)
		for i, u := range all {
			if u.ID == q.StartAfterID {
				start = i + 1
				break
			}
		}
	}
	if start < 0 {
		start = 0
	}
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return domain.UserPage{Users: append([]domain.User(nil), all[start:end]...), Total: len(all)}, nil
}

func (r *UserRepo) SearchByEmailPrefix(_ domain.Context, prefix string, limit int) ([]domain.User, error) {
	all := r.sorted(prefix)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// TranscriptRepo stores chat messages in insertion order.
type TranscriptRepo struct {
	mu   sync.RWMutex
	rows []domain.ChatMessage
}

func NewTranscriptRepo() *TranscriptRepo { return &TranscriptRepo{} }

func (r *TranscriptRepo) Append(_ domain.Context, m domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, m)
	return nil
}

func (r *TranscriptRepo) ListByInterview(_ domain.Context, interviewID string) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ChatMessage
	for _, m := range r.rows {
		if m.InterviewID == interviewID {
			out = append(out, m)
		}
	}
	return out, nil
}

// FeedbackRepo stores feedback keyed by id.
type FeedbackRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.Feedback
}

func NewFeedbackRepo() *FeedbackRepo { return &FeedbackRepo{rows: map[string]domain.Feedback{}} }

func (r *FeedbackRepo) Upsert(_ domain.Context, f domain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.rows {
		if id != f.ID && existing.InterviewID == f.InterviewID && existing.UserID == f.UserID {
			return wrap(domain.ErrConflict, "feedback.upsert")
		}
	}
	r.rows[f.ID] = f
	return nil
}

func (r *FeedbackRepo) Get(_ domain.Context, id string) (domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.rows[id]
	if !ok {
		return domain.Feedback{}, notFound("feedback.get")
	}
	return f, nil
}

func (r *FeedbackRepo) FindByInterviewAndUser(_ domain.Context, interviewID, userID string) (domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.rows {
		if f.InterviewID == interviewID && f.UserID == userID {
			return f, nil
		}
	}
	return domain.Feedback{}, notFound("feedback.find")
}

func (r *FeedbackRepo) ListByInterview(_ domain.Context, interviewID string) ([]domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Feedback
	for _, f := range r.rows {
		if f.InterviewID == interviewID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of stored feedback documents.
func (r *FeedbackRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// FeedbackJobRepo stores feedback jobs.
type FeedbackJobRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.FeedbackJob
	now  func() time.Time
}

func NewFeedbackJobRepo() *FeedbackJobRepo {
	return &FeedbackJobRepo{rows: map[string]domain.FeedbackJob{}, now: func() time.Time { return time.Now().UTC() }}
}

func (r *FeedbackJobRepo) Create(_ domain.Context, j domain.FeedbackJob) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if _, ok := r.rows[j.ID]; ok {
		return "", wrap(domain.ErrConflict, "job.create")
	}
	r.rows[j.ID] = j
	return j.ID, nil
}

func (r *FeedbackJobRepo) Get(_ domain.Context, id string) (domain.FeedbackJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.rows[id]
	if !ok {
		return domain.FeedbackJob{}, notFound("job.get")
	}
	return j, nil
}

func (r *FeedbackJobRepo) UpdateStatus(_ domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return notFound("job.update_status")
	}
	j.Status = status
	j.Error = ""
	if errMsg != nil {
		j.Error = *errMsg
	}
	j.UpdatedAt = r.now()
	r.rows[id] = j
	return nil
}

func (r *FeedbackJobRepo) SetFeedbackID(_ domain.Context, id, feedbackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return notFound("job.set_feedback")
	}
	j.FeedbackID = feedbackID
	r.rows[id] = j
	return nil
}

func (r *FeedbackJobRepo) FailStale(_ domain.Context, olderThan time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, j := range r.rows {
		if (j.Status == domain.JobProcessing || j.Status == domain.JobQueued) && j.UpdatedAt.Before(olderThan) {
			j.Status, j.Error, j.UpdatedAt = domain.JobFailed, reason, r.now()
			r.rows[id] = j
			n++
		}
	}
	return n, nil
}

func (r *FeedbackJobRepo) PurgeFinished(_ domain.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, j := range r.rows {
		if (j.Status == domain.JobCompleted || j.Status == domain.JobFailed) && j.UpdatedAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// IdentityRepo stores credentials; emails are unique.
type IdentityRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.Identity
}

func NewIdentityRepo() *IdentityRepo { return &IdentityRepo{rows: map[string]domain.Identity{}} }

func (r *IdentityRepo) CreateIdentity(_ domain.Context, id domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(id.Email)
	if _, ok := r.rows[key]; ok {
		return wrap(domain.ErrConflict, "identity.create")
	}
	r.rows[key] = id
	return nil
}

func (r *IdentityRepo) GetIdentityByEmail(_ domain.Context, email string) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.rows[strings.ToLower(email)]
	if !ok {
		return domain.Identity{}, notFound("identity.get")
	}
	return id, nil
}

func (r *IdentityRepo) RebindIdentity(_ domain.Context, email, subject string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(email)
	id, ok := r.rows[key]
	if !ok {
		return "", notFound("identity.rebind")
	}
	prev := id.Subject
	id.Subject, id.Disabled = subject, false
	r.rows[key] = id
	return prev, nil
}

func (r *IdentityRepo) DisableIdentity(_ domain.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, id := range r.rows {
		if id.Subject == subject {
			id.Disabled = true
			r.rows[k] = id
		}
	}
	return nil
}
