package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

type adminInterviewRequest struct {
	Type      string          `json:"type" validate:"required"`
	Role      string          `json:"role" validate:"required,max=200"`
	Level     string          `json:"level" validate:"required"`
	Questions json.RawMessage `json:"questions"`
	Rubric    string          `json:"rubric" validate:"required"`
	TechStack []string        `json:"techstack" validate:"omitempty,max=50,dive,max=100"`
}

type interviewRequest struct {
	Type      string   `json:"type" validate:"required"`
	Role      string   `json:"role" validate:"required,max=200"`
	Level     string   `json:"level" validate:"required"`
	Questions []string `json:"questions" validate:"required,min=1,max=50,dive,max=2000"`
	TechStack []string `json:"techstack" validate:"omitempty,max=50,dive,max=100"`
	Finalized bool     `json:"finalized"`
}

// CreateAdminInterviewHandler stores an admin-created interview. It accepts
// JSON, or multipart form fields with the rubric uploaded as rubricFile.
func (s *Server) CreateAdminInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req     adminInterviewRequest
			details map[string]string
			err     error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			req, err = s.readAdminInterviewForm(w, r)
			if err == nil {
				details, err = validateStruct(&req)
			}
		} else {
			details, err = decodeJSON(w, r, &req)
		}
		if err != nil {
			if len(details) > 0 {
				err = fmt.Errorf("%w: Missing required fields", domain.ErrInvalidArgument)
			}
			writeError(w, r, err, details)
			return
		}
		questions, err := parseQuestions(req.Questions)
		if err != nil {
			writeError(w, r, err, map[string]string{"questions": "format"})
			return
		}
		u, _ := currentUser(r)
		iv, err := s.Interviews.Create(r.Context(), u, usecase.CreateInterviewInput{
			Role: req.Role, Type: req.Type, Level: req.Level,
			Questions: questions, TechStack: req.TechStack, Rubric: req.Rubric,
			AdminCreated: true,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusCreated, iv)
	}
}

func (s *Server) readAdminInterviewForm(w http.ResponseWriter, r *http.Request) (adminInterviewRequest, error) {
	maxBytes := s.Cfg.MaxRubricKB * 1024
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return adminInterviewRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	req := adminInterviewRequest{
		Type:   r.FormValue("type"),
		Role:   r.FormValue("role"),
		Level:  r.FormValue("level"),
		Rubric: r.FormValue("rubric"),
	}
	if q := r.FormValue("questions"); q != "" {
		raw, _ := json.Marshal(q)
		req.Questions = raw
	}
	f, _, err := r.FormFile("rubricFile")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return adminInterviewRequest{}, fmt.Errorf("%w: rubricFile: %v", domain.ErrInvalidArgument, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return adminInterviewRequest{}, fmt.Errorf("%w: rubricFile: %v", domain.ErrInvalidArgument, err)
	}
	if int64(len(data)) > maxBytes {
		return adminInterviewRequest{}, fmt.Errorf("%w: rubricFile exceeds %d KB", domain.ErrInvalidArgument, s.Cfg.MaxRubricKB)
	}
	if mt := mimetype.Detect(data); !mt.Is("text/plain") {
		return adminInterviewRequest{}, fmt.Errorf("%w: rubricFile must be plain text or markdown, got %s", domain.ErrInvalidArgument, mt.String())
	}
	req.Rubric = string(data)
	return req, nil
}

// ListAdminInterviewsHandler lists admin-created interviews, optionally
// filtered by role, type and creation date range.
func (s *Server) ListAdminInterviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := domain.InterviewFilter{
			Role: q.Get("role"), Type: q.Get("type"),
			DateFrom: q.Get("dateFrom"), DateTo: q.Get("dateTo"),
		}
		ivs, err := s.Interviews.ListFiltered(r.Context(), f)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, ivs)
	}
}

// CreateInterviewHandler stores a self-service interview.
func (s *Server) CreateInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, _ := currentUser(r)
		iv, err := s.Interviews.Create(r.Context(), u, usecase.CreateInterviewInput{
			Role: req.Role, Type: req.Type, Level: req.Level,
			Questions: req.Questions, TechStack: req.TechStack, Finalized: req.Finalized,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusCreated, iv)
	}
}

func (s *Server) MyInterviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		ivs, err := s.Interviews.ListByCreator(r.Context(), u.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, ivs)
	}
}

func (s *Server) LatestInterviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		ivs, err := s.Interviews.Latest(r.Context(), u.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, ivs)
	}
}

// AccessHandler returns the access decision for the interview page.
func (s *Server) AccessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var user *domain.User
		if u, ok := currentUser(r); ok {
			user = &u
		}
		res, err := s.Access.Resolve(r.Context(), user, id, r.URL.Query().Get("invitationToken"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetInterviewHandler returns the interview when access is allowed, otherwise
// 403 with the decision and redirect in details.
func (s *Server) GetInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.resolveAccess(w, r)
		if !ok {
			return
		}
		writeData(w, http.StatusOK, res.Interview)
	}
}

func (s *Server) resolveAccess(w http.ResponseWriter, r *http.Request) (usecase.AccessResult, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return usecase.AccessResult{}, false
	}
	u, _ := currentUser(r)
	res, err := s.Access.Resolve(r.Context(), &u, id, r.URL.Query().Get("invitationToken"))
	if err != nil {
		writeError(w, r, err, nil)
		return usecase.AccessResult{}, false
	}
	if res.Decision != usecase.DecisionAllow {
		writeError(w, r, fmt.Errorf("%w: interview is not accessible", domain.ErrForbidden),
			map[string]string{"decision": string(res.Decision), "redirect": res.Redirect})
		return usecase.AccessResult{}, false
	}
	return res, true
}

func (s *Server) FinalizeInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		u, _ := currentUser(r)
		if err := s.Interviews.Finalize(r.Context(), u, id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
