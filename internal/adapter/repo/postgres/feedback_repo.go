package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const feedbackColumns = `id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at`

// FeedbackRepo persists feedback. The (interview_id, user_id) index keeps at
// most one document per candidate and interview.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

// Upsert inserts or overwrites the document keyed by f.ID. Writing a second id
// for an existing pair violates the pair index and is ErrConflict.
func (r *FeedbackRepo) Upsert(ctx domain.Context, f domain.Feedback) error {
	ctx, span := startSpan(ctx, "feedback", "UPSERT", "feedback.Upsert")
	defer span.End()
	cats, err := json.Marshal(f.CategoryScores)
	if err != nil {
		return fmt.Errorf("op=feedback.upsert: %w", err)
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `INSERT INTO feedback (` + feedbackColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			interview_id=EXCLUDED.interview_id,
			user_id=EXCLUDED.user_id,
			total_score=EXCLUDED.total_score,
			category_scores=EXCLUDED.category_scores,
			strengths=EXCLUDED.strengths,
			areas_for_improvement=EXCLUDED.areas_for_improvement,
			final_assessment=EXCLUDED.final_assessment,
			created_at=EXCLUDED.created_at`
	_, err = r.Pool.Exec(ctx, q, f.ID, f.InterviewID, f.UserID, f.TotalScore, cats,
		nonNil(f.Strengths), nonNil(f.AreasForImprovement), f.FinalAssessment, createdAt)
	if err != nil {
		return dbErr("feedback.upsert", err)
	}
	return nil
}

// Get loads feedback by id.
func (r *FeedbackRepo) Get(ctx domain.Context, id string) (domain.Feedback, error) {
	ctx, span := startSpan(ctx, "feedback", "SELECT", "feedback.Get")
	defer span.End()
	f, err := scanFeedback(r.Pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id=$1`, id))
	if err != nil {
		return domain.Feedback{}, dbErr("feedback.get", err)
	}
	return f, nil
}

// FindByInterviewAndUser loads the single document for the pair.
func (r *FeedbackRepo) FindByInterviewAndUser(ctx domain.Context, interviewID, userID string) (domain.Feedback, error) {
	ctx, span := startSpan(ctx, "feedback", "SELECT", "feedback.FindByInterviewAndUser")
	defer span.End()
	q := `SELECT ` + feedbackColumns + ` FROM feedback WHERE interview_id=$1 AND user_id=$2`
	f, err := scanFeedback(r.Pool.QueryRow(ctx, q, interviewID, userID))
	if err != nil {
		return domain.Feedback{}, dbErr("feedback.find", err)
	}
	return f, nil
}

// ListByInterview returns every candidate's feedback for an interview.
func (r *FeedbackRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.Feedback, error) {
	ctx, span := startSpan(ctx, "feedback", "SELECT", "feedback.ListByInterview")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE interview_id=$1 ORDER BY id`, interviewID)
	if err != nil {
		return nil, dbErr("feedback.list", err)
	}
	out, err := collect(rows, scanFeedback)
	if err != nil {
		return nil, dbErr("feedback.list", err)
	}
	return out, nil
}

func scanFeedback(row scanner) (domain.Feedback, error) {
	var f domain.Feedback
	var cats []byte
	if err := row.Scan(&f.ID, &f.InterviewID, &f.UserID, &f.TotalScore, &cats,
		&f.Strengths, &f.AreasForImprovement, &f.FinalAssessment, &f.CreatedAt); err != nil {
		return domain.Feedback{}, err
	}
	if err := json.Unmarshal(cats, &f.CategoryScores); err != nil {
		return domain.Feedback{}, fmt.Errorf("decode category_scores: %w", err)
	}
	return f, nil
}
