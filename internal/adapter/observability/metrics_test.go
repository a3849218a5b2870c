package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/api/interview/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/interview/{id}", http.MethodGet, "204"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/interview/iv1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/interview/{id}", http.MethodGet, "204"))
	assert.Equal(t, before+1, after)
}

func TestHTTPMetricsMiddleware_ImplicitOK(t *testing.T) {
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("x")) }))
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/plain", http.MethodGet, "200"))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/plain", http.MethodGet, "200")))
}

func TestJobMetricsHelpers(t *testing.T) {
	InitMetrics()
	InitMetrics()

	EnqueueJob("feedback")
	StartProcessingJob("feedback")
	CompleteJob("feedback")
	StartProcessingJob("feedback")
	FailJob("feedback", "UPSTREAM_TIMEOUT")

	assert.Equal(t, 0.0, testutil.ToFloat64(JobsProcessing.WithLabelValues("feedback")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(JobsFailedTotal.WithLabelValues("feedback", "UPSTREAM_TIMEOUT")), 1.0)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(InvitationsCreatedTotal.WithLabelValues("true"))
	RecordInvitation(true)
	assert.Equal(t, before+1, testutil.ToFloat64(InvitationsCreatedTotal.WithLabelValues("true")))

	before = testutil.ToFloat64(EmailsSentTotal.WithLabelValues("invitation", "failed"))
	RecordEmail("invitation", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(EmailsSentTotal.WithLabelValues("invitation", "failed")))

	ObserveFeedback(74)
	ObserveFeedback(140) // ignored
	ObserveCompletion("gemini-2.0-flash-001", "ok", 2*time.Second)
	assert.GreaterOrEqual(t, testutil.ToFloat64(CompletionRequestsTotal.WithLabelValues("gemini-2.0-flash-001", "ok")), 1.0)
}
