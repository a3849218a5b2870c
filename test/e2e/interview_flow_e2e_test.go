//go:build e2e

package e2e_test

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_InvitationToFeedback walks an admin invitation through to generated feedback.
// It needs a running server seeded with E2E_ADMIN_EMAIL and E2E_ADMIN_PASSWORD.
func TestE2E_InvitationToFeedback(t *testing.T) {
	c := newClient()
	requireApp(t, c)
	adminEmail, adminPassword := os.Getenv("E2E_ADMIN_EMAIL"), os.Getenv("E2E_ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		t.Skip("E2E_ADMIN_EMAIL/E2E_ADMIN_PASSWORD not set")
	}
	adminTok := signIn(t, c, adminEmail, adminPassword)

	code, body := call(t, c, http.MethodPost, "/admin/interview", adminTok, map[string]any{
		"type": "Technical", "role": "Backend Engineer", "level": "Mid",
		"questions": []string{"Why Go?", "How do you test concurrent code?"},
		"rubric":    "Prefer concrete examples.", "techstack": []string{"go", "redis"},
	})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	interviewID := body["data"].(map[string]any)["id"].(string)

	email := fmt.Sprintf("cand-%d@e2e.test", time.Now().UnixNano())
	code, body = call(t, c, http.MethodPost, "/auth/sign-up", "", map[string]string{
		"name": "E2E Candidate", "email": email, "password": "e2e-password-1",
	})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	candTok := signIn(t, c, email, "e2e-password-1")

	code, body = call(t, c, http.MethodPost, "/invitation", adminTok, map[string]any{
		"interviewId": interviewID, "recipientEmail": email,
		"deadline": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	link, _ := body["data"].(map[string]any)["invitationLink"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)
	invToken := u.Query().Get("invitationToken")
	require.NotEmpty(t, invToken)

	code, body = call(t, c, http.MethodGet, "/interview/"+interviewID+"/access?invitationToken="+url.QueryEscape(invToken), candTok, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "allow", body["decision"])

	turns := []map[string]string{
		{"senderType": "assistant", "content": "Why Go?"},
		{"senderType": "user", "content": "Fast builds, a simple language and good tooling."},
		{"senderType": "assistant", "content": "How do you test concurrent code?"},
		{"senderType": "user", "content": "Race detector, deterministic clocks and small goroutine boundaries."},
	}
	for _, m := range turns {
		code, body = call(t, c, http.MethodPost, "/interview/"+interviewID+"/messages", candTok, m)
		require.Equal(t, http.StatusCreated, code, "%v", body)
	}

	code, body = call(t, c, http.MethodPost, "/feedback", candTok, map[string]any{"interviewId": interviewID})
	require.Equal(t, http.StatusAccepted, code, "%v", body)
	jobID, _ := body["jobId"].(string)
	require.NotEmpty(t, jobID)

	final := waitForTerminal(t, c, candTok, jobID, 2*time.Minute)
	require.Equal(t, "completed", final["status"], "%v", final)
	fb, ok := final["feedback"].(map[string]any)
	require.True(t, ok, "feedback missing: %v", final)
	assert.Len(t, fb["categoryScores"], 5)

	code, body = call(t, c, http.MethodGet, "/interview/"+interviewID+"/access", candTok, nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "redirect_feedback", body["decision"])

	code, _ = call(t, c, http.MethodGet, "/admin/interview/"+interviewID+"/candidates", adminTok, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestE2E_UnauthenticatedAccessRedirects(t *testing.T) {
	c := newClient()
	requireApp(t, c)
	code, body := call(t, c, http.MethodGet, "/interview/does-not-exist/access", "", nil)
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "redirect_sign_in", body["decision"])
}
