package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const invitationColumns = `id, interview_id, sender_id, recipient_id, recipient_email, status, token, deadline, created_at, completed_at`

// InvitationRepo persists the invitation ledger. Tokens are unique by index.
type InvitationRepo struct{ Pool PgxPool }

// NewInvitationRepo constructs an InvitationRepo with the given pool.
func NewInvitationRepo(p PgxPool) *InvitationRepo { return &InvitationRepo{Pool: p} }

// Create inserts an invitation. A token collision is ErrConflict.
func (r *InvitationRepo) Create(ctx domain.Context, inv domain.Invitation) (string, error) {
	ctx, span := startSpan(ctx, "invitations", "INSERT", "invitations.Create")
	defer span.End()
	id := inv.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := `INSERT INTO invitations (` + invitationColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, inv.InterviewID, inv.SenderID, inv.RecipientID, inv.RecipientEmail,
		string(inv.Status), inv.Token, inv.Deadline, createdAt, inv.CompletedAt)
	if err != nil {
		return "", dbErr("invitation.create", err)
	}
	return id, nil
}

// Get loads an invitation by id.
func (r *InvitationRepo) Get(ctx domain.Context, id string) (domain.Invitation, error) {
	return r.one(ctx, "Get", "invitation.get", `WHERE id=$1`, id)
}

// FindByToken resolves a token within one interview only.
func (r *InvitationRepo) FindByToken(ctx domain.Context, interviewID, token string) (domain.Invitation, error) {
	return r.one(ctx, "FindByToken", "invitation.find_by_token", `WHERE interview_id=$1 AND token=$2`, interviewID, token)
}

// FindByRecipient returns the newest invitation for the pair.
func (r *InvitationRepo) FindByRecipient(ctx domain.Context, interviewID, recipientID string) (domain.Invitation, error) {
	return r.one(ctx, "FindByRecipient", "invitation.find_by_recipient",
		`WHERE interview_id=$1 AND recipient_id=$2 ORDER BY created_at DESC, id DESC LIMIT 1`, interviewID, recipientID)
}

// ListByRecipient returns invitations received by userID newest first.
func (r *InvitationRepo) ListByRecipient(ctx domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListByRecipient", `WHERE recipient_id=$1`, userID)
}

// ListBySender returns invitations sent by userID newest first.
func (r *InvitationRepo) ListBySender(ctx domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListBySender", `WHERE sender_id=$1`, userID)
}

// ListByInterview returns every invitation for an interview newest first.
func (r *InvitationRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListByInterview", `WHERE interview_id=$1`, interviewID)
}

// Advance moves the invitation forward only. The predecessor set is enforced
// in the WHERE clause so concurrent writers cannot move a row backwards.
func (r *InvitationRepo) Advance(ctx domain.Context, id string, to domain.InvitationStatus, at time.Time) (bool, error) {
	ctx, span := startSpan(ctx, "invitations", "UPDATE", "invitations.Advance")
	defer span.End()
	preds := to.Predecessors()
	if len(preds) == 0 {
		return false, nil
	}
	from := make([]string, len(preds))
	for i, p := range preds {
		from[i] = string(p)
	}
	q := `UPDATE invitations
		SET status=$2, completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END
		WHERE id=$1 AND status = ANY($4)`
	tag, err := r.Pool.Exec(ctx, q, id, string(to), at.UTC(), from)
	if err != nil {
		return false, dbErr("invitation.advance", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invitations WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, dbErr("invitation.advance", err)
	}
	if !exists {
		return false, dbErr("invitation.advance", errNoRows)
	}
	return false, nil
}

func (r *InvitationRepo) one(ctx domain.Context, name, op, where string, args ...any) (domain.Invitation, error) {
	ctx, span := startSpan(ctx, "invitations", "SELECT", "invitations."+name)
	defer span.End()
	inv, err := scanInvitation(r.Pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations `+where, args...))
	if err != nil {
		return domain.Invitation{}, dbErr(op, err)
	}
	return inv, nil
}

func (r *InvitationRepo) list(ctx domain.Context, name, where string, args ...any) ([]domain.Invitation, error) {
	ctx, span := startSpan(ctx, "invitations", "SELECT", "invitations."+name)
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+invitationColumns+` FROM invitations `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, dbErr("invitation.list", err)
	}
	out, err := collect(rows, scanInvitation)
	if err != nil {
		return nil, dbErr("invitation.list", err)
	}
	return out, nil
}

func scanInvitation(row scanner) (domain.Invitation, error) {
	var inv domain.Invitation
	var status string
	if err := row.Scan(&inv.ID, &inv.InterviewID, &inv.SenderID, &inv.RecipientID, &inv.RecipientEmail,
		&status, &inv.Token, &inv.Deadline, &inv.CreatedAt, &inv.CompletedAt); err != nil {
		return domain.Invitation{}, err
	}
	inv.Status = domain.InvitationStatus(status)
	return inv, nil
}
