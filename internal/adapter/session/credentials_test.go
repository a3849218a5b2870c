package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/memory"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

var fastParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()
	h, err := HashPassword("correct horse", fastParams)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("correct horse", h))
	assert.False(t, VerifyPassword("wrong horse", h))

	other, err := HashPassword("correct horse", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, h, other, "salt must differ")
}

func TestVerifyPassword_Malformed(t *testing.T) {
	t.Parallel()
	for _, enc := range []string{
		"",
		"bcrypt$1$2$3$4$5",
		"argon2id$x$1024$1$c2FsdA$aGFzaA",
		"argon2id$1$1024$1$!!$aGFzaA",
		"argon2id$1$1024$1$c2FsdA$",
	} {
		assert.False(t, VerifyPassword("pw", enc), enc)
	}
}

func newCredentials() (*Credentials, *memory.IdentityRepo) {
	repo := memory.NewIdentityRepo()
	return NewCredentials(repo).WithParams(fastParams), repo
}

func TestCredentials_RegisterAndAuthenticate(t *testing.T) {
	t.Parallel()
	c, _ := newCredentials()
	ctx := context.Background()

	sub, err := c.Register(ctx, " Alice@X.com ", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, sub)

	got, err := c.Authenticate(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	_, err = c.Authenticate(ctx, "alice@x.com", "nope-nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = c.Authenticate(ctx, "bob@x.com", "password1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = c.Register(ctx, "alice@x.com", "password2")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCredentials_RegisterValidation(t *testing.T) {
	t.Parallel()
	c, _ := newCredentials()
	_, err := c.Register(context.Background(), "", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = c.Register(context.Background(), "a@x.com", "short")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCredentials_RebindAndDeactivate(t *testing.T) {
	t.Parallel()
	c, _ := newCredentials()
	ctx := context.Background()

	fresh, err := c.Register(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	prev, err := c.Rebind(ctx, "alice@x.com", "temp-user-id")
	require.NoError(t, err)
	assert.Equal(t, fresh, prev)

	got, err := c.Authenticate(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "temp-user-id", got)

	require.NoError(t, c.Deactivate(ctx, "temp-user-id"))
	_, err = c.Authenticate(ctx, "alice@x.com", "password1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = c.Rebind(ctx, "ghost@x.com", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
