package postgres

import (
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const userColumns = `id, name, email, role, temporary_account, created_at`

// UserRepo persists application accounts. Emails are unique case-insensitively.
type UserRepo struct{ Pool PgxPool }

// NewUserRepo constructs a UserRepo with the given pool.
func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

// Create inserts a user. A duplicate id or email is ErrConflict.
func (r *UserRepo) Create(ctx domain.Context, u domain.User) error {
	ctx, span := startSpan(ctx, "users", "INSERT", "users.Create")
	defer span.End()
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	q := `INSERT INTO users (` + userColumns + `) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, u.ID, u.Name, strings.ToLower(u.Email), string(role), u.TemporaryAccount, createdAt); err != nil {
		return dbErr("user.create", err)
	}
	return nil
}

// Get loads a user by id.
func (r *UserRepo) Get(ctx domain.Context, id string) (domain.User, error) {
	ctx, span := startSpan(ctx, "users", "SELECT", "users.Get")
	defer span.End()
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return domain.User{}, dbErr("user.get", err)
	}
	return u, nil
}

// FindByEmail loads a user by email.
func (r *UserRepo) FindByEmail(ctx domain.Context, email string) (domain.User, error) {
	ctx, span := startSpan(ctx, "users", "SELECT", "users.FindByEmail")
	defer span.End()
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email)=lower($1)`
	u, err := scanUser(r.Pool.QueryRow(ctx, q, strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, dbErr("user.find_by_email", err)
	}
	return u, nil
}

// ConvertTemporary flips a temporary account to permanent. The guard in the
// WHERE clause makes the first writer win; later writers see ErrConflict.
func (r *UserRepo) ConvertTemporary(ctx domain.Context, id, name string) error {
	ctx, span := startSpan(ctx, "users", "UPDATE", "users.ConvertTemporary")
	defer span.End()
	q := `UPDATE users SET temporary_account=FALSE, name = CASE WHEN $2 <> '' THEN $2 ELSE name END
		WHERE id=$1 AND temporary_account`
	tag, err := r.Pool.Exec(ctx, q, id, name)
	if err != nil {
		return dbErr("user.convert", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, id).Scan(&exists); err != nil {
		return dbErr("user.convert", err)
	}
	if !exists {
		return dbErr("user.convert", errNoRows)
	}
	return dbErr("user.convert", domain.ErrConflict)
}

// List returns one page of users ordered by email, either by page number or
// by keyset after StartAfterID.
func (r *UserRepo) List(ctx domain.Context, q domain.UserQuery) (domain.UserPage, error) {
	ctx, span := startSpan(ctx, "users", "SELECT", "users.List")
	defer span.End()
	pattern := likePrefix(q.EmailPrefix)
	var total int
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE lower(email) LIKE $1`, pattern).Scan(&total); err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	sql := `SELECT ` + userColumns + ` FROM users WHERE lower(email) LIKE $1`
	args := []any{pattern}
	if q.StartAfterID != "" {
		sql += ` AND (lower(email), id) > (SELECT lower(email), id FROM users WHERE id=$2) ORDER BY lower(email), id LIMIT $3`
		args = append(args, q.StartAfterID, q.Limit)
	} else {
		page := q.Page
		if page < 1 {
			page = 1
		}
		sql += ` ORDER BY lower(email), id OFFSET $2 LIMIT $3`
		args = append(args, (page-1)*q.Limit, q.Limit)
	}
	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	return domain.UserPage{Users: users, Total: total}, nil
}

// SearchByEmailPrefix returns at most limit users whose email starts with prefix.
func (r *UserRepo) SearchByEmailPrefix(ctx domain.Context, prefix string, limit int) ([]domain.User, error) {
	ctx, span := startSpan(ctx, "users", "SELECT", "users.SearchByEmailPrefix")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) LIKE $1 ORDER BY lower(email), id LIMIT $2`,
		likePrefix(prefix), limit)
	if err != nil {
		return nil, dbErr("user.search", err)
	}
	out, err := collect(rows, scanUser)
	if err != nil {
		return nil, dbErr("user.search", err)
	}
	return out, nil
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.TemporaryAccount, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
