package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const interviewColumns = `id, role, level, type, questions, tech_stack, rubric, created_by, is_admin_created, finalized, created_at`

// InterviewRepo persists interview definitions.
type InterviewRepo struct{ Pool PgxPool }

// NewInterviewRepo constructs an InterviewRepo with the given pool.
func NewInterviewRepo(p PgxPool) *InterviewRepo { return &InterviewRepo{Pool: p} }

// Create inserts an interview and returns its id (generates one if empty).
func (r *InterviewRepo) Create(ctx domain.Context, iv domain.Interview) (string, error) {
	ctx, span := startSpan(ctx, "interviews", "INSERT", "interviews.Create")
	defer span.End()
	id := iv.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := iv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `INSERT INTO interviews (` + interviewColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.Pool.Exec(ctx, q, id, iv.Role, string(iv.Level), string(iv.Type), nonNil(iv.Questions), nonNil(iv.TechStack),
		iv.Rubric, iv.CreatedBy, iv.IsAdminCreated, iv.Finalized, createdAt)
	if err != nil {
		return "", dbErr("interview.create", err)
	}
	return id, nil
}

// Get loads an interview by id.
func (r *InterviewRepo) Get(ctx domain.Context, id string) (domain.Interview, error) {
	ctx, span := startSpan(ctx, "interviews", "SELECT", "interviews.Get")
	defer span.End()
	iv, err := scanInterview(r.Pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id=$1`, id))
	if err != nil {
		return domain.Interview{}, dbErr("interview.get", err)
	}
	return iv, nil
}

func (r *InterviewRepo) list(ctx domain.Context, op, where string, args ...any) ([]domain.Interview, error) {
	ctx, span := startSpan(ctx, "interviews", "SELECT", "interviews."+op)
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+interviewColumns+` FROM interviews `+where, args...)
	if err != nil {
		return nil, dbErr("interview.list", err)
	}
	out, err := collect(rows, scanInterview)
	if err != nil {
		return nil, dbErr("interview.list", err)
	}
	return out, nil
}

// ListAll returns every interview newest first.
func (r *InterviewRepo) ListAll(ctx domain.Context) ([]domain.Interview, error) {
	return r.list(ctx, "ListAll", `ORDER BY created_at DESC, id`)
}

// ListAdminCreated returns admin-authored interviews newest first.
func (r *InterviewRepo) ListAdminCreated(ctx domain.Context) ([]domain.Interview, error) {
	return r.list(ctx, "ListAdminCreated", `WHERE is_admin_created ORDER BY created_at DESC, id`)
}

// ListByCreator returns interviews created by userID newest first.
func (r *InterviewRepo) ListByCreator(ctx domain.Context, userID string) ([]domain.Interview, error) {
	return r.list(ctx, "ListByCreator", `WHERE created_by=$1 ORDER BY created_at DESC, id`, userID)
}

// ListFinalized returns finalized interviews by other users newest first.
func (r *InterviewRepo) ListFinalized(ctx domain.Context, excludeUserID string, limit int) ([]domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx, "ListFinalized", `WHERE finalized AND created_by <> $1 ORDER BY created_at DESC, id LIMIT $2`, excludeUserID, limit)
}

// SetFinalized toggles the only mutable interview field.
func (r *InterviewRepo) SetFinalized(ctx domain.Context, id string, finalized bool) error {
	ctx, span := startSpan(ctx, "interviews", "UPDATE", "interviews.SetFinalized")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE interviews SET finalized=$2 WHERE id=$1`, id, finalized)
	if err != nil {
		return dbErr("interview.set_finalized", err)
	}
	if tag.RowsAffected() == 0 {
		return dbErr("interview.set_finalized", errNoRows)
	}
	return nil
}

func scanInterview(row scanner) (domain.Interview, error) {
	var iv domain.Interview
	var level, typ string
	if err := row.Scan(&iv.ID, &iv.Role, &level, &typ, &iv.Questions, &iv.TechStack, &iv.Rubric,
		&iv.CreatedBy, &iv.IsAdminCreated, &iv.Finalized, &iv.CreatedAt); err != nil {
		return domain.Interview{}, err
	}
	iv.Level, iv.Type = domain.Level(level), domain.InterviewType(typ)
	return iv, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
