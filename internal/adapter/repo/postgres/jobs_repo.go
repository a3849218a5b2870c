package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const jobColumns = `id, interview_id, user_id, feedback_id, status, error, created_at, updated_at`

// FeedbackJobRepo persists and loads feedback jobs from PostgreSQL.
type FeedbackJobRepo struct{ Pool PgxPool }

// NewFeedbackJobRepo constructs a FeedbackJobRepo with the given pool.
func NewFeedbackJobRepo(p PgxPool) *FeedbackJobRepo { return &FeedbackJobRepo{Pool: p} }

// Create inserts a new job and returns its id.
func (r *FeedbackJobRepo) Create(ctx domain.Context, j domain.FeedbackJob) (string, error) {
	ctx, span := startSpan(ctx, "feedback_jobs", "INSERT", "jobs.Create")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO feedback_jobs (` + jobColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, id, j.InterviewID, j.UserID, j.FeedbackID, string(j.Status), j.Error, now, now); err != nil {
		return "", dbErr("job.create", err)
	}
	return id, nil
}

// Get loads a job by id.
func (r *FeedbackJobRepo) Get(ctx domain.Context, id string) (domain.FeedbackJob, error) {
	ctx, span := startSpan(ctx, "feedback_jobs", "SELECT", "jobs.Get")
	defer span.End()
	var j domain.FeedbackJob
	var status string
	err := r.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM feedback_jobs WHERE id=$1`, id).
		Scan(&j.ID, &j.InterviewID, &j.UserID, &j.FeedbackID, &status, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return domain.FeedbackJob{}, dbErr("job.get", err)
	}
	j.Status = domain.JobStatus(status)
	return j, nil
}

// UpdateStatus updates a job's status and optional error message.
func (r *FeedbackJobRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	ctx, span := startSpan(ctx, "feedback_jobs", "UPDATE", "jobs.UpdateStatus")
	defer span.End()
	// nil clears the error column, which is NOT NULL
	errVal := ""
	if errMsg != nil {
		errVal = *errMsg
	}
	tag, err := r.Pool.Exec(ctx, `UPDATE feedback_jobs SET status=$2, error=$3, updated_at=$4 WHERE id=$1`,
		id, string(status), errVal, time.Now().UTC())
	if err != nil {
		return dbErr("job.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return dbErr("job.update_status", errNoRows)
	}
	return nil
}

// SetFeedbackID links the produced feedback document to the job.
func (r *FeedbackJobRepo) SetFeedbackID(ctx domain.Context, id, feedbackID string) error {
	ctx, span := startSpan(ctx, "feedback_jobs", "UPDATE", "jobs.SetFeedbackID")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE feedback_jobs SET feedback_id=$2, updated_at=$3 WHERE id=$1`, id, feedbackID, time.Now().UTC())
	if err != nil {
		return dbErr("job.set_feedback", err)
	}
	if tag.RowsAffected() == 0 {
		return dbErr("job.set_feedback", errNoRows)
	}
	return nil
}

// FailStale fails unfinished jobs that have not moved since olderThan.
func (r *FeedbackJobRepo) FailStale(ctx domain.Context, olderThan time.Time, reason string) (int64, error) {
	ctx, span := startSpan(ctx, "feedback_jobs", "UPDATE", "jobs.FailStale")
	defer span.End()
	q := `UPDATE feedback_jobs SET status='failed', error=$2, updated_at=$3
		WHERE status IN ('queued','processing') AND updated_at < $1`
	tag, err := r.Pool.Exec(ctx, q, olderThan.UTC(), reason, time.Now().UTC())
	if err != nil {
		return 0, dbErr("job.fail_stale", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeFinished deletes completed and failed jobs last touched before the cutoff.
func (r *FeedbackJobRepo) PurgeFinished(ctx domain.Context, before time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "feedback_jobs", "DELETE", "jobs.PurgeFinished")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM feedback_jobs WHERE status IN ('completed','failed') AND updated_at < $1`, before.UTC())
	if err != nil {
		return 0, dbErr("job.purge", err)
	}
	return tag.RowsAffected(), nil
}
