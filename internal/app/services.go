package app

import (
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

// Deps are the infrastructure adapters the use cases are built on.
type Deps struct {
	Stores      Stores
	Completion  domain.CompletionClient
	Queue       domain.Queue
	Mailer      domain.Mailer
	Limiter     domain.RateLimiter
	Sessions    domain.SessionManager
	Credentials domain.IdentityProvider
}

// BuildServices wires every use case. The server and the worker share it so
// both processes run the same ledger and engine configuration.
func BuildServices(cfg config.Config, d Deps) httpserver.Services {
	st := d.Stores
	ledger := usecase.NewInvitationService(st.Invitations, st.Interviews, st.Users, st.Feedback, d.Mailer, d.Limiter, cfg.BaseURL)
	transcripts := usecase.NewTranscriptService(st.Transcripts, st.Interviews)
	engine := usecase.NewFeedbackEngine(d.Completion, st.Feedback, ai.MustLoadFeedbackPrompts(), cfg.CompletionTimeoutOrDefault())
	if cfg.FeedbackMaxPromptTokens > 0 {
		engine = engine.WithTokenGuard(tokencount.DefaultCounter, cfg.FeedbackMaxPromptTokens)
	}
	return httpserver.Services{
		Identity:    usecase.NewIdentityService(st.Users, d.Credentials, d.Sessions),
		Interviews:  usecase.NewInterviewService(st.Interviews),
		Invitations: ledger,
		Access:      usecase.NewAccessService(st.Interviews, ledger, st.Feedback),
		Feedback:    usecase.NewFeedbackService(engine, st.Jobs, d.Queue, st.Interviews, transcripts, ledger, st.Users, d.Mailer, cfg.BaseURL),
		Transcripts: transcripts,
		Directory:   usecase.NewUserDirectoryService(st.Users),
	}
}
