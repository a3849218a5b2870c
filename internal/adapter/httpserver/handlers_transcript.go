package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

type appendMessageRequest struct {
	SenderType string `json:"senderType" validate:"required,oneof=user assistant"`
	Content    string `json:"content" validate:"required,max=20000"`
}

// AppendMessageHandler stores one turn of the caller's session. The caller
// must be allowed into the interview.
func (s *Server) AppendMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.resolveAccess(w, r)
		if !ok {
			return
		}
		var req appendMessageRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, _ := currentUser(r)
		m, err := s.Transcripts.Append(r.Context(), res.Interview.ID, u.ID, domain.SenderType(req.SenderType), req.Content)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusCreated, m)
	}
}

// ListMessagesHandler returns the caller's session in timestamp order.
func (s *Server) ListMessagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		u, _ := currentUser(r)
		msgs, err := s.Transcripts.GetSession(r.Context(), id, u.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, msgs)
	}
}
