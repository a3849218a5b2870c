package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/pkg/textx"
)

// TranscriptService is the append-only chat log of interview sessions.
type TranscriptService struct {
	Messages   domain.TranscriptRepository
	Interviews domain.InterviewRepository
	Now        func() time.Time
	NewID      func() string
}

// NewTranscriptService constructs a TranscriptService.
func NewTranscriptService(msgs domain.TranscriptRepository, iv domain.InterviewRepository) TranscriptService {
	return TranscriptService{Messages: msgs, Interviews: iv, Now: nowUTC, NewID: NewULID}
}

// Append stores one turn; the timestamp is assigned here, never by the client.
func (s TranscriptService) Append(ctx domain.Context, interviewID, senderID string, senderType domain.SenderType, content string) (domain.ChatMessage, error) {
	if senderType != domain.SenderUser && senderType != domain.SenderAssistant {
		return domain.ChatMessage{}, fmt.Errorf("%w: senderType must be user or assistant", domain.ErrInvalidArgument)
	}
	content = textx.SanitizeText(content)
	if content == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: content is required", domain.ErrInvalidArgument)
	}
	if _, err := s.Interviews.Get(ctx, interviewID); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("op=transcript.append: %w", err)
	}
	m := domain.ChatMessage{
		ID:          s.NewID(),
		InterviewID: interviewID,
		SenderID:    senderID,
		SenderType:  senderType,
		Content:     content,
		Timestamp:   s.Now(),
	}
	if err := s.Messages.Append(ctx, m); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("op=transcript.append: %w", err)
	}
	return m, nil
}

// GetAll returns every message of an interview in ascending timestamp order.
// Equal timestamps keep their storage order.
func (s TranscriptService) GetAll(ctx domain.Context, interviewID string) ([]domain.ChatMessage, error) {
	msgs, err := s.Messages.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("op=transcript.get_all: %w", err)
	}
	SortMessages(msgs)
	return msgs, nil
}

// GetSession returns one candidate's session of an interview.
func (s TranscriptService) GetSession(ctx domain.Context, interviewID, userID string) ([]domain.ChatMessage, error) {
	msgs, err := s.GetAll(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.SenderID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// SortMessages is a stable ascending sort by timestamp.
func SortMessages(msgs []domain.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
}

// ToTurns converts stored messages to grading turns.
func ToTurns(msgs []domain.ChatMessage) []domain.TranscriptTurn {
	out := make([]domain.TranscriptTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.TranscriptTurn{Role: string(m.SenderType), Content: m.Content})
	}
	return out
}
