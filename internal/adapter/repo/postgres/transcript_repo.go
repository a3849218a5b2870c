package postgres

import (
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// TranscriptRepo is the append-only chat message store.
type TranscriptRepo struct{ Pool PgxPool }

// NewTranscriptRepo constructs a TranscriptRepo with the given pool.
func NewTranscriptRepo(p PgxPool) *TranscriptRepo { return &TranscriptRepo{Pool: p} }

// Append stores one message.
func (r *TranscriptRepo) Append(ctx domain.Context, m domain.ChatMessage) error {
	ctx, span := startSpan(ctx, "chat_messages", "INSERT", "chat_messages.Append")
	defer span.End()
	q := `INSERT INTO chat_messages (id, interview_id, sender_id, sender_type, content, ts) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, m.ID, m.InterviewID, m.SenderID, string(m.SenderType), m.Content, m.Timestamp); err != nil {
		return dbErr("transcript.append", err)
	}
	return nil
}

// ListByInterview returns every message of an interview.
func (r *TranscriptRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.ChatMessage, error) {
	ctx, span := startSpan(ctx, "chat_messages", "SELECT", "chat_messages.ListByInterview")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT id, interview_id, sender_id, sender_type, content, ts
		FROM chat_messages WHERE interview_id=$1 ORDER BY ts, id`, interviewID)
	if err != nil {
		return nil, dbErr("transcript.list", err)
	}
	out, err := collect(rows, func(row scanner) (domain.ChatMessage, error) {
		var m domain.ChatMessage
		var sender string
		if err := row.Scan(&m.ID, &m.InterviewID, &m.SenderID, &sender, &m.Content, &m.Timestamp); err != nil {
			return domain.ChatMessage{}, err
		}
		m.SenderType = domain.SenderType(sender)
		return m, nil
	})
	if err != nil {
		return nil, dbErr("transcript.list", err)
	}
	return out, nil
}
