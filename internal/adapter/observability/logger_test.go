package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/config"
)

func TestSetupLogger_DevAndProd(t *testing.T) {
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "svc"}))
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "prod", OTELServiceName: "svc"}))
}

func TestNewLogger_FieldsLevelAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(&buf, config.Config{AppEnv: "prod", OTELServiceName: "mock-interviewer"})
	lg.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is off outside dev")

	lg.Info("signed in", slog.String("email", "a@x.com"), slog.String("password", "hunter22"), slog.String("invitationToken", "abc"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "mock-interviewer", rec["service"])
	assert.Equal(t, "prod", rec["env"])
	assert.Equal(t, "a@x.com", rec["email"])
	assert.Equal(t, "[REDACTED]", rec["password"])
	assert.Equal(t, "[REDACTED]", rec["invitationToken"])

	buf.Reset()
	NewLogger(&buf, config.Config{AppEnv: "dev"}).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
