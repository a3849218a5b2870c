package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

// FeedbackService runs feedback generation asynchronously through the queue
// and applies the completion side effects once a document is persisted.
type FeedbackService struct {
	Engine      FeedbackEngine
	Jobs        domain.FeedbackJobRepository
	Queue       domain.Queue
	Interviews  domain.InterviewRepository
	Transcripts TranscriptService
	Ledger      InvitationService
	Users       domain.UserRepository
	Mailer      domain.Mailer
	BaseURL     string
	Now         func() time.Time
	NewID       func() string
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(engine FeedbackEngine, jobs domain.FeedbackJobRepository, q domain.Queue, iv domain.InterviewRepository, transcripts TranscriptService, ledger InvitationService, users domain.UserRepository, mailer domain.Mailer, baseURL string) FeedbackService {
	return FeedbackService{
		Engine: engine, Jobs: jobs, Queue: q, Interviews: iv, Transcripts: transcripts,
		Ledger: ledger, Users: users, Mailer: mailer, BaseURL: strings.TrimRight(baseURL, "/"),
		Now: nowUTC, NewID: NewULID,
	}
}

// FeedbackRequest asks for (re)generation. Transcript may be empty, in which
// case the stored session is graded.
type FeedbackRequest struct {
	InterviewID string
	FeedbackID  string
	Transcript  []domain.TranscriptTurn
}

// Request records a queued job and hands it to the worker.
func (s FeedbackService) Request(ctx domain.Context, user domain.User, req FeedbackRequest) (domain.FeedbackJob, error) {
	if req.InterviewID == "" {
		return domain.FeedbackJob{}, fmt.Errorf("%w: interviewId is required", domain.ErrInvalidArgument)
	}
	if _, err := s.Interviews.Get(ctx, req.InterviewID); err != nil {
		return domain.FeedbackJob{}, fmt.Errorf("op=feedback.request: %w", err)
	}
	now := s.Now()
	job := domain.FeedbackJob{
		ID:          s.NewID(),
		InterviewID: req.InterviewID,
		UserID:      user.ID,
		FeedbackID:  req.FeedbackID,
		Status:      domain.JobQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.Jobs.Create(ctx, job)
	if err != nil {
		return domain.FeedbackJob{}, fmt.Errorf("op=feedback.request: %w", err)
	}
	job.ID = id
	payload := domain.FeedbackTaskPayload{
		JobID:       id,
		InterviewID: req.InterviewID,
		UserID:      user.ID,
		FeedbackID:  req.FeedbackID,
		Transcript:  req.Transcript,
		RequestID:   observability.RequestIDFromContext(ctx),
	}
	if _, err := s.Queue.EnqueueFeedback(ctx, payload); err != nil {
		msg := "enqueue failed"
		_ = s.Jobs.UpdateStatus(ctx, id, domain.JobFailed, &msg)
		return domain.FeedbackJob{}, fmt.Errorf("op=feedback.request: %w", err)
	}
	return job, nil
}

// Process is the worker side of Request. It returns the engine error after
// recording it on the job; callers must not retry the model call.
func (s FeedbackService) Process(ctx domain.Context, p domain.FeedbackTaskPayload) (domain.Feedback, error) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("job_id", p.JobID))
	job, err := s.Jobs.Get(ctx, p.JobID)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("op=feedback.process: %w", err)
	}
	if job.Status == domain.JobCompleted || job.Status == domain.JobFailed {
		// redelivered record; the model is never called twice for one job
		return domain.Feedback{}, fmt.Errorf("op=feedback.process: %w: job already %s", domain.ErrConflict, job.Status)
	}
	if err := s.Jobs.UpdateStatus(ctx, p.JobID, domain.JobProcessing, nil); err != nil {
		return domain.Feedback{}, fmt.Errorf("op=feedback.process: %w", err)
	}
	turns := p.Transcript
	if len(turns) == 0 {
		msgs, err := s.Transcripts.GetSession(ctx, p.InterviewID, p.UserID)
		if err != nil {
			return domain.Feedback{}, s.fail(ctx, p.JobID, err)
		}
		turns = ToTurns(msgs)
	}
	f, err := s.Engine.Generate(ctx, p.InterviewID, p.UserID, turns, p.FeedbackID)
	if err != nil {
		return domain.Feedback{}, s.fail(ctx, p.JobID, err)
	}
	if err := s.Jobs.SetFeedbackID(ctx, p.JobID, f.ID); err != nil {
		lg.Warn("failed to link feedback to job", slog.Any("error", err))
	}
	if err := s.Jobs.UpdateStatus(ctx, p.JobID, domain.JobCompleted, nil); err != nil {
		lg.Warn("failed to mark job completed", slog.Any("error", err))
	}
	s.afterPersist(ctx, f)
	return f, nil
}

func (s FeedbackService) fail(ctx domain.Context, jobID string, cause error) error {
	msg := cause.Error()
	if err := s.Jobs.UpdateStatus(ctx, jobID, domain.JobFailed, &msg); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	return cause
}

// afterPersist completes the candidate's invitation and notifies them. Both are best effort.
func (s FeedbackService) afterPersist(ctx domain.Context, f domain.Feedback) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("feedback_id", f.ID))
	inv, err := s.Ledger.GetUserInvitation(ctx, f.InterviewID, f.UserID)
	switch {
	case err == nil:
		if err := s.Ledger.Advance(ctx, inv.ID, domain.InvitationCompleted); err != nil {
			lg.Warn("invitation completion failed", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		}
	case !errors.Is(err, domain.ErrNotFound):
		lg.Warn("invitation lookup failed", slog.Any("error", err))
	}

	if s.Mailer == nil || !s.Mailer.Configured() {
		return
	}
	u, err := s.Users.Get(ctx, f.UserID)
	if err != nil {
		lg.Warn("feedback email skipped", slog.Any("error", err))
		return
	}
	iv, err := s.Interviews.Get(ctx, f.InterviewID)
	if err != nil {
		lg.Warn("feedback email skipped", slog.Any("error", err))
		return
	}
	err = s.Mailer.SendFeedbackReady(ctx, domain.FeedbackNotice{
		To:            u.Email,
		CandidateName: displayNameFor(u.Name, u.Email),
		Role:          iv.Role,
		TotalScore:    f.TotalScore,
		ScoreLabel:    ScoreLabel(f.TotalScore),
		Link:          fmt.Sprintf("%s/interview/%s/feedback", s.BaseURL, f.InterviewID),
	})
	if err != nil {
		lg.Warn("feedback email failed", slog.Any("error", err))
	}
}

// FetchJob returns the job envelope with ETag support. Only the job owner or an admin may read it.
func (s FeedbackService) FetchJob(ctx domain.Context, requester domain.User, id, ifNoneMatch string) (int, map[string]any, string, error) {
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return 0, nil, "", fmt.Errorf("op=feedback.job: %w", err)
	}
	if job.UserID != requester.ID && !requester.IsAdmin() {
		return 0, nil, "", fmt.Errorf("%w: not your job", domain.ErrForbidden)
	}
	m := map[string]any{"id": job.ID, "status": string(job.Status), "interviewId": job.InterviewID}
	switch job.Status {
	case domain.JobFailed:
		m["error"] = map[string]any{"code": errorCodeFromJobError(job.Error), "message": publicJobMessage(job.Error)}
	case domain.JobCompleted:
		f, err := s.Engine.Feedback.FindByInterviewAndUser(ctx, job.InterviewID, job.UserID)
		if err != nil {
			return 0, nil, "", fmt.Errorf("op=feedback.job: %w", err)
		}
		m["feedback"] = f
	}
	etag := makeETag(m)
	if etag == ifNoneMatch {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

// Get returns the candidate's feedback for an interview.
func (s FeedbackService) Get(ctx domain.Context, interviewID, userID string) (domain.Feedback, error) {
	return s.Engine.Get(ctx, interviewID, userID)
}

// FailStale marks processing jobs older than the threshold as failed.
func (s FeedbackService) FailStale(ctx domain.Context, staleAfter time.Duration) (int64, error) {
	n, err := s.Jobs.FailStale(ctx, s.Now().Add(-staleAfter), "timeout: job exceeded processing window")
	if err != nil {
		return 0, fmt.Errorf("op=feedback.fail_stale: %w", err)
	}
	return n, nil
}

// PurgeFinished deletes completed and failed jobs older than the retention window.
func (s FeedbackService) PurgeFinished(ctx domain.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	n, err := s.Jobs.PurgeFinished(ctx, s.Now().AddDate(0, 0, -retentionDays))
	if err != nil {
		return 0, fmt.Errorf("op=feedback.purge: %w", err)
	}
	return n, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// errorCodeFromJobError maps a stored job error to a stable code.
func errorCodeFromJobError(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(s, domain.ErrFeedbackParse.Error()), strings.Contains(s, "invalid json"):
		return "FEEDBACK_PARSE_ERROR"
	case strings.Contains(s, domain.ErrSchemaInvalid.Error()):
		return "VALIDATION_ERROR"
	case strings.Contains(s, "rate limit"):
		return "UPSTREAM_RATE_LIMIT"
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return "UPSTREAM_TIMEOUT"
	case strings.Contains(s, domain.ErrUpstream.Error()):
		return "UPSTREAM_FAILURE"
	case strings.Contains(s, "not found"):
		return "NOT_FOUND"
	case strings.Contains(s, "invalid argument"):
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}

// publicJobMessage hides internal detail from clients.
func publicJobMessage(msg string) string {
	switch errorCodeFromJobError(msg) {
	case "UPSTREAM_TIMEOUT":
		return "feedback generation timed out, please retry"
	case "INVALID_ARGUMENT":
		return "the transcript could not be graded"
	case "NOT_FOUND":
		return "interview or transcript not found"
	default:
		return "feedback generation failed, please retry"
	}
}
