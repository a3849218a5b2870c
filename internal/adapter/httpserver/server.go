package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

// Services are the use cases the handlers call into.
type Services struct {
	Identity    usecase.IdentityService
	Interviews  usecase.InterviewService
	Invitations usecase.InvitationService
	Access      usecase.AccessService
	Feedback    usecase.FeedbackService
	Transcripts usecase.TranscriptService
	Directory   usecase.UserDirectoryService
}

// Server aggregates handler dependencies.
type Server struct {
	Services
	Cfg        config.Config
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs a Server with its readiness probes.
func NewServer(cfg config.Config, svc Services, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Services: svc, Cfg: cfg, DBCheck: dbCheck, RedisCheck: redisCheck}
}

// MountAPI registers every /api route on r. The session gateway runs on all
// of them; handlers needing a user or the admin role say so explicitly.
func (s *Server) MountAPI(r chi.Router) {
	r.Use(s.Authenticate)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up", s.SignUpHandler())
		r.Post("/sign-in", s.SignInHandler())
		r.Post("/sign-out", s.SignOutHandler())
		r.With(RequireUser).Get("/me", s.MeHandler())
	})

	// anonymous callers get a sign-in redirect decision
	r.Get("/interview/{id}/access", s.AccessHandler())

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Get("/user/invitations", s.ReceivedInvitationsHandler())
		r.Get("/invitation", s.SentInvitationsHandler())

		r.Post("/interviews", s.CreateInterviewHandler())
		r.Get("/interviews/mine", s.MyInterviewsHandler())
		r.Get("/interviews/latest", s.LatestInterviewsHandler())

		r.Get("/interview/{id}", s.GetInterviewHandler())
		r.Post("/interview/{id}/finalize", s.FinalizeInterviewHandler())
		r.Get("/interview/{id}/messages", s.ListMessagesHandler())
		r.Post("/interview/{id}/messages", s.AppendMessageHandler())
		r.Get("/interview/{id}/feedback", s.MyFeedbackHandler())

		r.Post("/feedback", s.RequestFeedbackHandler())
		r.Get("/feedback/jobs/{id}", s.FeedbackJobHandler())
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)

		r.Post("/invitation", s.CreateInvitationHandler())
		r.Post("/invitation/{id}/resend", s.ResendInvitationHandler())

		r.Route("/admin", func(r chi.Router) {
			r.Post("/interview", s.CreateAdminInterviewHandler())
			r.Get("/interview", s.ListAdminInterviewsHandler())
			r.Get("/interview/{id}/candidates", s.CandidatesHandler())
			r.Get("/interview/{id}/candidates/{userId}/transcript", s.CandidateTranscriptHandler())
			r.Get("/interview/{id}/candidates/{userId}/feedback", s.CandidateFeedbackHandler())

			r.Get("/users", s.ListUsersHandler())
			r.Get("/users/search", s.SearchUsersHandler())
			r.Post("/users/convert", s.ConvertUserHandler())
		})
	})
}

// ReadyzHandler probes the store and redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name string
			fn   func(context.Context) error
		}{{"db", s.DBCheck}, {"redis", s.RedisCheck}}

		checks := make([]check, 0, len(probes))
		st := http.StatusOK
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			c := check{Name: p.name, OK: true}
			if err := p.fn(ctx); err != nil {
				c.OK, c.Details = false, err.Error()
				st = http.StatusServiceUnavailable
			}
			checks = append(checks, c)
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// writeData renders a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}
