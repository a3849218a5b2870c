package httpserver

import (
	"net/http"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

// CandidatesHandler lists an interview's invited candidates with their scores.
func (s *Server) CandidatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rows, err := s.Invitations.Candidates(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, rows)
	}
}

func candidatePath(r *http.Request) (string, string, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return "", "", err
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		return "", "", err
	}
	return id, userID, nil
}

func (s *Server) CandidateTranscriptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, userID, err := candidatePath(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		msgs, err := s.Transcripts.GetSession(r.Context(), id, userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, msgs)
	}
}

func (s *Server) CandidateFeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, userID, err := candidatePath(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		f, err := s.Feedback.Get(r.Context(), id, userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, feedbackView{Feedback: f, ScoreLabel: usecase.ScoreLabel(f.TotalScore)})
	}
}

// ListUsersHandler pages through users by page number or startAfterId.
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		page, err := queryInt(r, "page")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		q := r.URL.Query()
		list, err := s.Directory.List(r.Context(), domain.UserQuery{
			EmailPrefix:  q.Get("email"),
			Limit:        limit,
			Page:         page,
			StartAfterID: strings.TrimSpace(q.Get("startAfterId")),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			usecase.UserList
		}{true, list})
	}
}

// SearchUsersHandler is the email prefix autocomplete.
func (s *Server) SearchUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.Directory.Search(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, users)
	}
}

type convertUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=100"`
}

// ConvertUserHandler turns a temporary account into a permanent one.
func (s *Server) ConvertUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req convertUserRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, err := s.Identity.ConvertTemporaryUser(r.Context(), req.Email, req.Name)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, u)
	}
}
