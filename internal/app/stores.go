package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/memory"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/mongo"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// Stores is one Document Store backend seen through the repository ports.
type Stores struct {
	Interviews  domain.InterviewRepository
	Invitations domain.InvitationRepository
	Users       domain.UserRepository
	Transcripts domain.TranscriptRepository
	Feedback    domain.FeedbackRepository
	Jobs        domain.FeedbackJobRepository
	Identities  domain.IdentityRepository

	ping  func(ctx context.Context) error
	close func()
}

// Ping probes the backend.
func (s Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return fmt.Errorf("store not configured")
	}
	return s.ping(ctx)
}

// Close releases backend connections.
func (s Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the backend selected by STORE_DRIVER and prepares its
// schema or indexes.
func OpenStores(ctx context.Context, cfg config.Config) (Stores, error) {
	switch cfg.StoreDriver {
	case "mongo":
		st, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return Stores{}, fmt.Errorf("op=app.open_stores: %w", err)
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(context.Background())
			return Stores{}, fmt.Errorf("op=app.open_stores: %w", err)
		}
		r := st.Repos()
		slog.Info("document store ready", slog.String("driver", "mongo"), slog.String("database", cfg.MongoDatabase))
		return Stores{
			Interviews: r.Interviews, Invitations: r.Invitations, Users: r.Users,
			Transcripts: r.Transcripts, Feedback: r.Feedback, Jobs: r.Jobs, Identities: r.Identities,
			ping:  st.Ping,
			close: func() { _ = st.Close(context.Background()) },
		}, nil
	case "memory":
		slog.Warn("using in-memory document store; data is lost on restart")
		return MemoryStores(), nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return Stores{}, fmt.Errorf("op=app.open_stores: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return Stores{}, fmt.Errorf("op=app.open_stores: %w", err)
		}
		slog.Info("document store ready", slog.String("driver", "postgres"))
		return Stores{
			Interviews:  postgres.NewInterviewRepo(pool),
			Invitations: postgres.NewInvitationRepo(pool),
			Users:       postgres.NewUserRepo(pool),
			Transcripts: postgres.NewTranscriptRepo(pool),
			Feedback:    postgres.NewFeedbackRepo(pool),
			Jobs:        postgres.NewFeedbackJobRepo(pool),
			Identities:  postgres.NewIdentityRepo(pool),
			ping:        pool.Ping,
			close:       pool.Close,
		}, nil
	}
}

// MemoryStores returns a process-local store for dev and tests.
func MemoryStores() Stores {
	return Stores{
		Interviews:  memory.NewInterviewRepo(),
		Invitations: memory.NewInvitationRepo(),
		Users:       memory.NewUserRepo(),
		Transcripts: memory.NewTranscriptRepo(),
		Feedback:    memory.NewFeedbackRepo(),
		Jobs:        memory.NewFeedbackJobRepo(),
		Identities:  memory.NewIdentityRepo(),
		ping:        func(context.Context) error { return nil },
	}
}
