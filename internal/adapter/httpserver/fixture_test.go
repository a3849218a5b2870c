package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/memory"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/session"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

type apiFixture struct {
	t           *testing.T
	handler     http.Handler
	srv         *httpserver.Server
	users       *memory.UserRepo
	interviews  *memory.InterviewRepo
	invitations *memory.InvitationRepo
	feedback    *memory.FeedbackRepo
	messages    *memory.TranscriptRepo
	queue       *mocks.MockQueue
	sessions    *session.TokenIssuer
	admin       domain.User
	candidate   domain.User
	adminTok    string
	candTok     string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &apiFixture{
		t:           t,
		users:       memory.NewUserRepo(),
		interviews:  memory.NewInterviewRepo(),
		invitations: memory.NewInvitationRepo(),
		feedback:    memory.NewFeedbackRepo(),
		messages:    memory.NewTranscriptRepo(),
		queue:       &mocks.MockQueue{},
		sessions:    session.NewTokenIssuer([]byte("test-secret"), time.Hour, rdb),
		admin:       domain.User{ID: "admin-1", Name: "Ada", Email: "ada@corp.io", Role: domain.RoleAdmin, CreatedAt: time.Now()},
		candidate:   domain.User{ID: "cand-1", Name: "Bob", Email: "bob@mail.io", Role: domain.RoleUser, CreatedAt: time.Now()},
	}
	require.NoError(t, f.users.Create(ctx, f.admin))
	require.NoError(t, f.users.Create(ctx, f.candidate))

	creds := session.NewCredentials(memory.NewIdentityRepo()).WithParams(session.Argon2Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16,
	})
	jobs := memory.NewFeedbackJobRepo()
	ledger := usecase.NewInvitationService(f.invitations, f.interviews, f.users, f.feedback, nil, nil, "http://app.test")
	transcripts := usecase.NewTranscriptService(f.messages, f.interviews)
	engine := usecase.NewFeedbackEngine(&mocks.MockCompletionClient{}, f.feedback, ai.MustLoadFeedbackPrompts(), time.Second)

	f.srv = httpserver.NewServer(config.Config{MaxRubricKB: 4}, httpserver.Services{
		Identity:    usecase.NewIdentityService(f.users, creds, f.sessions),
		Interviews:  usecase.NewInterviewService(f.interviews),
		Invitations: ledger,
		Access:      usecase.NewAccessService(f.interviews, ledger, f.feedback),
		Feedback:    usecase.NewFeedbackService(engine, jobs, f.queue, f.interviews, transcripts, ledger, f.users, nil, "http://app.test"),
		Transcripts: transcripts,
		Directory:   usecase.NewUserDirectoryService(f.users),
	}, nil, nil)

	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Route("/api", f.srv.MountAPI)
	f.handler = r

	f.adminTok = f.issue(f.admin.ID)
	f.candTok = f.issue(f.candidate.ID)
	return f
}

func (f *apiFixture) issue(userID string) string {
	f.t.Helper()
	tok, _, err := f.sessions.Issue(context.Background(), userID)
	require.NoError(f.t, err)
	return tok
}

func (f *apiFixture) seedInterview(id string, adminCreated bool) domain.Interview {
	f.t.Helper()
	iv := domain.Interview{
		ID: id, Role: "Backend Engineer", Level: domain.LevelMid, Type: domain.TypeTechnical,
		Questions: []string{"Why Go?"}, CreatedBy: f.admin.ID, IsAdminCreated: adminCreated,
		Finalized: true, CreatedAt: time.Now(),
	}
	_, err := f.interviews.Create(context.Background(), iv)
	require.NoError(f.t, err)
	return iv
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	f.handler.ServeHTTP(rw, req)
	return rw
}

func (f *apiFixture) expectEnqueue() {
	f.queue.On("EnqueueFeedback", mock.Anything, mock.Anything).Return("ok", nil)
}

func decode(t *testing.T, rw *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &m), rw.Body.String())
	return m
}

func errorMessage(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decode(t, rw)["error"].(map[string]any)
	require.True(t, ok, rw.Body.String())
	msg, _ := e["message"].(string)
	return msg
}

func (f *apiFixture) seedUser(id, email string) string {
	f.t.Helper()
	require.NoError(f.t, f.users.Create(context.Background(), domain.User{ID: id, Name: id, Email: email, Role: domain.RoleUser, CreatedAt: time.Now()}))
	return id
}
