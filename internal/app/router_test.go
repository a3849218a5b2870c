package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/ai/stub"
	httpserver "github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/session"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/app"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/service/ratelimiter"
)

func newTestRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	observability.InitMetrics()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	stores := app.MemoryStores()
	limiter := ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
		"invite": ratelimiter.NewBucketConfigFromPerHour(10),
	})
	svc := app.BuildServices(cfg, app.Deps{
		Stores:      stores,
		Completion:  stub.New(),
		Queue:       &mocks.MockQueue{},
		Limiter:     limiter.Gate(),
		Sessions:    session.NewTokenIssuer(cfg.SessionKey(), time.Hour, rdb),
		Credentials: session.NewCredentials(stores.Identities),
	})
	dbCheck, redisCheck := app.BuildReadinessChecks(stores, rdb)
	return app.BuildRouter(cfg, httpserver.NewServer(cfg, svc, dbCheck, redisCheck))
}

func TestBuildRouter_HealthReadyMetrics(t *testing.T) {
	h := newTestRouter(t, config.Config{AppEnv: "test", RateLimitPerMin: 100})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestBuildRouter_APIMounted(t *testing.T) {
	h := newTestRouter(t, config.Config{AppEnv: "test", RateLimitPerMin: 100})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/interview/iv1/access", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "redirect_sign_in")
}

func TestBuildRouter_RateLimitsAPI(t *testing.T) {
	h := newTestRouter(t, config.Config{AppEnv: "test", RateLimitPerMin: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRouter_CORSWithCredentials(t *testing.T) {
	h := newTestRouter(t, config.Config{AppEnv: "test", CORSAllowOrigins: "https://app.example.com"})
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestBuildRouter_ReadyzFailsWhenRedisDown(t *testing.T) {
	cfg := config.Config{AppEnv: "test"}
	stores := app.MemoryStores()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	dbCheck, redisCheck := app.BuildReadinessChecks(stores, rdb)
	srv := httpserver.NewServer(cfg, httpserver.Services{}, dbCheck, redisCheck)
	rec := httptest.NewRecorder()
	app.BuildRouter(cfg, srv).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, dbCheck(context.Background()))
}

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"  ,  ", []string{"*"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, app.ParseOrigins(c.in), c.in)
	}
}
