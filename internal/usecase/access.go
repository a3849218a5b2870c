package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

// Decision is the routing outcome for opening an interview.
type Decision string

const (
	DecisionAllow            Decision = "allow"
	DecisionRedirectFeedback Decision = "redirect_feedback"
	DecisionRedirectHome     Decision = "redirect_home"
	DecisionRedirectSignIn   Decision = "redirect_sign_in"
)

// AccessInput is everything Decide looks at. Invitation is the token-resolved
// invitation when Token is set, otherwise the user's own invitation.
type AccessInput struct {
	Interview  *domain.Interview
	User       *domain.User
	Token      string
	Invitation *domain.Invitation
	Feedback   *domain.Feedback
}

// Decide is a pure function of its input.
func Decide(in AccessInput) Decision {
	if in.User == nil {
		return DecisionRedirectSignIn
	}
	if in.Interview == nil {
		return DecisionRedirectHome
	}
	iv, u := in.Interview, in.User
	inv := in.Invitation
	if inv != nil && (inv.InterviewID != iv.ID || inv.RecipientID != u.ID) {
		inv = nil
	}
	fb := in.Feedback
	if fb != nil && (fb.InterviewID != iv.ID || fb.UserID != u.ID) {
		fb = nil
	}

	if in.Token != "" {
		if inv == nil || inv.Token != in.Token {
			return DecisionRedirectHome
		}
		if fb != nil && inv.Status == domain.InvitationCompleted {
			return DecisionRedirectFeedback
		}
		return DecisionAllow
	}

	if iv.IsAdminCreated && inv == nil {
		return DecisionRedirectHome
	}
	if inv != nil && inv.Status == domain.InvitationCompleted && fb != nil {
		return DecisionRedirectFeedback
	}
	return DecisionAllow
}

// RedirectPath maps a decision to the client route it sends the user to.
func RedirectPath(d Decision, interviewID string) string {
	switch d {
	case DecisionRedirectFeedback:
		return "/interview/" + interviewID + "/feedback"
	case DecisionRedirectHome:
		return "/"
	case DecisionRedirectSignIn:
		return "/sign-in"
	default:
		return ""
	}
}

// AccessResult is the resolved decision plus what was loaded to make it.
type AccessResult struct {
	Decision   Decision           `json:"decision"`
	Redirect   string             `json:"redirect,omitempty"`
	Interview  *domain.Interview  `json:"interview,omitempty"`
	Invitation *domain.Invitation `json:"invitation,omitempty"`
}

// AccessService loads the inputs for Decide and applies the accepted transition.
type AccessService struct {
	Interviews domain.InterviewRepository
	Ledger     InvitationService
	Feedback   domain.FeedbackRepository
}

// NewAccessService constructs an AccessService.
func NewAccessService(iv domain.InterviewRepository, ledger InvitationService, fb domain.FeedbackRepository) AccessService {
	return AccessService{Interviews: iv, Ledger: ledger, Feedback: fb}
}

// Resolve decides whether user may open the interview. A nil user yields RedirectSignIn.
func (s AccessService) Resolve(ctx domain.Context, user *domain.User, interviewID, token string) (AccessResult, error) {
	in := AccessInput{User: user, Token: token}
	if user == nil {
		return s.result(in, interviewID), nil
	}
	iv, err := s.Interviews.Get(ctx, interviewID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.result(in, interviewID), nil
	case err != nil:
		return AccessResult{}, fmt.Errorf("op=access.resolve: %w", err)
	}
	in.Interview = &iv

	var inv domain.Invitation
	if token != "" {
		inv, err = s.Ledger.VerifyToken(ctx, interviewID, token)
	} else {
		inv, err = s.Ledger.GetUserInvitation(ctx, interviewID, user.ID)
	}
	switch {
	case err == nil:
		in.Invitation = &inv
	case !errors.Is(err, domain.ErrNotFound):
		return AccessResult{}, fmt.Errorf("op=access.resolve: %w", err)
	}

	fb, err := s.Feedback.FindByInterviewAndUser(ctx, interviewID, user.ID)
	switch {
	case err == nil:
		in.Feedback = &fb
	case !errors.Is(err, domain.ErrNotFound):
		return AccessResult{}, fmt.Errorf("op=access.resolve: %w", err)
	}

	res := s.result(in, interviewID)
	if res.Decision == DecisionAllow && in.Invitation != nil && in.Invitation.Status.CanAdvanceTo(domain.InvitationAccepted) {
		if err := s.Ledger.Advance(ctx, in.Invitation.ID, domain.InvitationAccepted); err != nil {
			observability.LoggerFromContext(ctx).Warn("invitation accept transition failed",
				slog.String("invitation_id", in.Invitation.ID), slog.Any("error", err))
		} else {
			in.Invitation.Status = domain.InvitationAccepted
		}
	}
	return res, nil
}

func (s AccessService) result(in AccessInput, interviewID string) AccessResult {
	d := Decide(in)
	res := AccessResult{Decision: d, Redirect: RedirectPath(d, interviewID)}
	if d == DecisionAllow {
		res.Interview = in.Interview
		res.Invitation = in.Invitation
	}
	return res
}
