package postgres

import (
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// IdentityRepo stores credentials for the Auth Service.
type IdentityRepo struct{ Pool PgxPool }

// NewIdentityRepo constructs an IdentityRepo with the given pool.
func NewIdentityRepo(p PgxPool) *IdentityRepo { return &IdentityRepo{Pool: p} }

// CreateIdentity inserts a credential. A duplicate email is ErrConflict.
func (r *IdentityRepo) CreateIdentity(ctx domain.Context, id domain.Identity) error {
	ctx, span := startSpan(ctx, "identities", "INSERT", "identities.Create")
	defer span.End()
	createdAt := id.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `INSERT INTO identities (email, subject, password_hash, disabled, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, strings.ToLower(id.Email), id.Subject, id.PasswordHash, id.Disabled, createdAt); err != nil {
		return dbErr("identity.create", err)
	}
	return nil
}

// GetIdentityByEmail loads the credential bound to email.
func (r *IdentityRepo) GetIdentityByEmail(ctx domain.Context, email string) (domain.Identity, error) {
	ctx, span := startSpan(ctx, "identities", "SELECT", "identities.GetByEmail")
	defer span.End()
	q := `SELECT email, subject, password_hash, disabled, created_at FROM identities WHERE email=$1`
	var id domain.Identity
	err := r.Pool.QueryRow(ctx, q, strings.ToLower(email)).Scan(&id.Email, &id.Subject, &id.PasswordHash, &id.Disabled, &id.CreatedAt)
	if err != nil {
		return domain.Identity{}, dbErr("identity.get", err)
	}
	return id, nil
}

// RebindIdentity points the credential at subject and returns the previous subject.
func (r *IdentityRepo) RebindIdentity(ctx domain.Context, email, subject string) (string, error) {
	ctx, span := startSpan(ctx, "identities", "UPDATE", "identities.Rebind")
	defer span.End()
	q := `WITH prev AS (SELECT email, subject FROM identities WHERE email=$1 FOR UPDATE)
		UPDATE identities i SET subject=$2, disabled=FALSE FROM prev WHERE i.email=prev.email
		RETURNING prev.subject`
	var prev string
	if err := r.Pool.QueryRow(ctx, q, strings.ToLower(email), subject).Scan(&prev); err != nil {
		return "", dbErr("identity.rebind", err)
	}
	return prev, nil
}

// DisableIdentity marks every credential bound to subject as disabled.
func (r *IdentityRepo) DisableIdentity(ctx domain.Context, subject string) error {
	ctx, span := startSpan(ctx, "identities", "UPDATE", "identities.Disable")
	defer span.End()
	if _, err := r.Pool.Exec(ctx, `UPDATE identities SET disabled=TRUE WHERE subject=$1`, subject); err != nil {
		return dbErr("identity.disable", err)
	}
	return nil
}
