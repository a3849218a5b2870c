package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "gemini-2.0-flash-001", cfg.GeminiModel)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"localhost:19092"}, cfg.KafkaBrokers)
	assert.NotEmpty(t, cfg.SessionKey())
}

func Test_Load_RejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "firestore")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=config.Load")
}

func Test_Load_ProdRequiresSessionSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SESSION_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), cfg.SessionKey())
}

func Test_EmailConfigured(t *testing.T) {
	assert.False(t, Config{}.EmailConfigured())
	assert.False(t, Config{EmailService: "gmail", EmailUser: "a"}.EmailConfigured())
	assert.True(t, Config{EmailService: "gmail", EmailUser: "a", EmailPassword: "b"}.EmailConfigured())
	assert.True(t, Config{EmailHost: "smtp.x", EmailUser: "a", EmailPassword: "b"}.EmailConfigured())
}

func Test_CompletionTimeoutOrDefault(t *testing.T) {
	assert.Equal(t, 45*time.Second, Config{}.CompletionTimeoutOrDefault())
	assert.Equal(t, 30*time.Second, Config{CompletionTimeout: 5 * time.Second}.CompletionTimeoutOrDefault())
	assert.Equal(t, 60*time.Second, Config{CompletionTimeout: 5 * time.Minute}.CompletionTimeoutOrDefault())
	assert.Equal(t, 40*time.Second, Config{CompletionTimeout: 40 * time.Second}.CompletionTimeoutOrDefault())
}
