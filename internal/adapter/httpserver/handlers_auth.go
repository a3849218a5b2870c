package httpserver

import (
	"net/http"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

type signUpRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpHandler registers an account. A pending invitee's temporary account
// is converted in place rather than duplicated.
func (s *Server) SignUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, decision, err := s.Identity.SignUp(r.Context(), usecase.SignUpInput{
			Name: strings.TrimSpace(req.Name), Email: req.Email, Password: req.Password,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		msg := "Account created successfully. Please sign in."
		if decision == usecase.ExistingTemporaryAccount {
			msg = "Account activated successfully. Please sign in."
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": msg, "data": u})
	}
}

// SignInHandler issues a session as an HTTP-only cookie and in the body for Bearer use.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		sess, err := s.Identity.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
		writeData(w, http.StatusOK, map[string]any{
			"token":     sess.Token,
			"expiresAt": sess.ExpiresAt,
			"user":      sess.User,
		})
	}
}

// SignOutHandler revokes the current session and clears the cookie.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := sessionToken(r)
		if err := s.Identity.SignOut(r.Context(), token); err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// MeHandler returns the signed-in user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		writeData(w, http.StatusOK, u)
	}
}
