//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	port := nat.Port("5432/tcp")
	req := tc.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{string(port)},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
		HostConfigModifier: func(hc *containerTypes.HostConfig) {
			hc.ShmSize = 256 << 20
		},
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/app?sslmode=disable", host, mapped.Port())

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, time.Second)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	require.NoError(t, postgres.EnsureSchema(ctx, pool), "schema must be idempotent")
	return pool
}

func TestPostgres_EndToEnd(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := postgres.NewUserRepo(pool)
	interviews := postgres.NewInterviewRepo(pool)
	invitations := postgres.NewInvitationRepo(pool)
	feedback := postgres.NewFeedbackRepo(pool)
	transcripts := postgres.NewTranscriptRepo(pool)

	require.NoError(t, users.Create(ctx, domain.User{ID: "admin", Name: "Admin", Email: "admin@corp.io", Role: domain.RoleAdmin}))
	require.NoError(t, users.Create(ctx, domain.User{ID: "alice", Name: "alice", Email: "alice@x.com", TemporaryAccount: true}))
	err := users.Create(ctx, domain.User{ID: "alice-2", Email: "ALICE@x.com"})
	assert.ErrorIs(t, err, domain.ErrConflict, "emails are unique case-insensitively")

	ivA, err := interviews.Create(ctx, domain.Interview{Role: "Backend Engineer", Type: domain.TypeTechnical, Level: domain.LevelMid,
		Questions: []string{"q1"}, CreatedBy: "admin", IsAdminCreated: true, Finalized: true})
	require.NoError(t, err)
	ivB, err := interviews.Create(ctx, domain.Interview{Role: "SRE", CreatedBy: "admin", IsAdminCreated: true})
	require.NoError(t, err)

	t.Run("token scoped to interview", func(t *testing.T) {
		_, err := invitations.Create(ctx, domain.Invitation{ID: "inv1", InterviewID: ivB, SenderID: "admin",
			RecipientID: "alice", RecipientEmail: "alice@x.com", Status: domain.InvitationSent, Token: "tok-b"})
		require.NoError(t, err)
		_, err = invitations.FindByToken(ctx, ivA, "tok-b")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = invitations.Create(ctx, domain.Invitation{InterviewID: ivA, SenderID: "admin", RecipientID: "alice",
			RecipientEmail: "alice@x.com", Status: domain.InvitationSent, Token: "tok-b"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("concurrent advance is monotonic", func(t *testing.T) {
		var wg sync.WaitGroup
		var moved atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				to := domain.InvitationAccepted
				if i%2 == 0 {
					to = domain.InvitationCompleted
				}
				ok, err := invitations.Advance(ctx, "inv1", to, time.Now())
				assert.NoError(t, err)
				if ok {
					moved.Add(1)
				}
			}(i)
		}
		wg.Wait()
		inv, err := invitations.Get(ctx, "inv1")
		require.NoError(t, err)
		assert.Equal(t, domain.InvitationCompleted, inv.Status)
		assert.NotNil(t, inv.CompletedAt)
		assert.LessOrEqual(t, moved.Load(), int32(2))
	})

	t.Run("conversion first writer wins", func(t *testing.T) {
		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if users.ConvertTemporary(ctx, "alice", "Alice") == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("one feedback per pair", func(t *testing.T) {
		f := domain.Feedback{ID: "f1", InterviewID: ivA, UserID: "alice", TotalScore: 70,
			CategoryScores: []domain.CategoryScore{{Name: "Communication Skills", Score: 70}},
			Strengths:      []string{"a"}, AreasForImprovement: []string{"b"}, FinalAssessment: "ok"}
		require.NoError(t, feedback.Upsert(ctx, f))
		f.TotalScore = 81
		require.NoError(t, feedback.Upsert(ctx, f))
		got, err := feedback.FindByInterviewAndUser(ctx, ivA, "alice")
		require.NoError(t, err)
		assert.Equal(t, 81.0, got.TotalScore)
		f.ID = "f2"
		assert.ErrorIs(t, feedback.Upsert(ctx, f), domain.ErrConflict)
	})

	t.Run("transcript order", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, off := range []int{3, 1, 2} {
			require.NoError(t, transcripts.Append(ctx, domain.ChatMessage{ID: fmt.Sprintf("m%d", i), InterviewID: ivA,
				SenderID: "alice", SenderType: domain.SenderUser, Content: fmt.Sprint(off), Timestamp: base.Add(time.Duration(off) * time.Second)}))
		}
		msgs, err := transcripts.ListByInterview(ctx, ivA)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"1", "2", "3"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	})

	t.Run("user pagination", func(t *testing.T) {
		page, err := users.List(ctx, domain.UserQuery{Limit: 1, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Users, 1)
		next, err := users.List(ctx, domain.UserQuery{Limit: 1, StartAfterID: page.Users[0].ID})
		require.NoError(t, err)
		require.Len(t, next.Users, 1)
		assert.NotEqual(t, page.Users[0].ID, next.Users[0].ID)
	})
}
