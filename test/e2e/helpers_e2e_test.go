//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newClient() *http.Client { return &http.Client{Timeout: 10 * time.Second} }

// requireApp skips the test when the server is not reachable.
func requireApp(t *testing.T, c *http.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	resp, err := c.Get(baseURL + "/healthz")
	if err != nil {
		t.Skipf("App not available at %s: %v", baseURL, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("App not healthy at %s: %d", baseURL, resp.StatusCode)
	}
}

func call(t *testing.T, c *http.Client, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+"/api"+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func signIn(t *testing.T, c *http.Client, email, password string) string {
	t.Helper()
	code, body := call(t, c, http.MethodPost, "/auth/sign-in", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, "sign-in failed: %v", body)
	data, _ := body["data"].(map[string]any)
	tok, _ := data["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

// waitForTerminal polls a feedback job until it completes or fails.
func waitForTerminal(t *testing.T, c *http.Client, token, jobID string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		code, body := call(t, c, http.MethodGet, "/feedback/jobs/"+jobID, token, nil)
		require.Equal(t, http.StatusOK, code, "poll failed: %v", body)
		if st, _ := body["status"].(string); st == "completed" || st == "failed" {
			return body
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %s", jobID, timeout)
	return nil
}
