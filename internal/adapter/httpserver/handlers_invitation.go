package httpserver

import (
	"net/http"

	metrics "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

type createInvitationRequest struct {
	InterviewID    string `json:"interviewId" validate:"required,max=100"`
	RecipientEmail string `json:"recipientEmail" validate:"required,email,max=254"`
	RecipientName  string `json:"recipientName" validate:"max=100"`
	Deadline       string `json:"deadline" validate:"required"`
}

type invitationView struct {
	domain.Invitation
	InvitationLink string `json:"invitationLink"`
}

type createInvitationResponse struct {
	Success bool `json:"success"`
	usecase.EmailOutcome
	AccountCreated bool           `json:"accountCreated"`
	Data           invitationView `json:"data"`
}

// CreateInvitationHandler records an invitation and attempts the email. The
// response is 201 whenever the invitation was stored; email delivery is
// reported in emailSent and emailStatus.
func (s *Server) CreateInvitationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInvitationRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		u, _ := currentUser(r)
		res, err := s.Invitations.Create(r.Context(), u, usecase.CreateInvitationInput{
			InterviewID:    req.InterviewID,
			RecipientEmail: req.RecipientEmail,
			RecipientName:  req.RecipientName,
			Deadline:       req.Deadline,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		metrics.RecordInvitation(res.AccountCreated)
		writeJSON(w, http.StatusCreated, createInvitationResponse{
			Success:        true,
			EmailOutcome:   res.EmailOutcome,
			AccountCreated: res.AccountCreated,
			Data:           invitationView{Invitation: res.Invitation, InvitationLink: res.Link},
		})
	}
}

// ResendInvitationHandler retries the email of an existing invitation.
func (s *Server) ResendInvitationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		u, _ := currentUser(r)
		out, err := s.Invitations.Resend(r.Context(), u, id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			usecase.EmailOutcome
		}{true, out})
	}
}

// SentInvitationsHandler lists invitations sent by ?userId= (default: caller).
func (s *Server) SentInvitationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		invs, err := s.Invitations.ListSent(r.Context(), u, r.URL.Query().Get("userId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, invs)
	}
}

// ReceivedInvitationsHandler lists the caller's invitations with interview and sender.
func (s *Server) ReceivedInvitationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		invs, err := s.Invitations.ListReceived(r.Context(), u.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, http.StatusOK, invs)
	}
}
