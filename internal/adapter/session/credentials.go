// Package session implements the Auth Service surface: password credentials
// bound to a subject, and signed session tokens resolving back to that subject.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// Argon2Params defines parameters for Argon2id password hashing.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params is used for new credentials.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

const minPasswordLen = 8

// HashPassword creates an Argon2id hash of the password.
func HashPassword(password string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)

	// argon2id$iterations$memory$parallelism$salt$hash
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks password against an encoded Argon2id hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	par := uint8(math.MaxUint8)
	if par64 < math.MaxUint8 {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// Credentials is the password-based IdentityProvider backed by the Document Store.
type Credentials struct {
	repo   domain.IdentityRepository
	params Argon2Params
	now    func() time.Time
}

// NewCredentials builds a provider with the default hashing parameters.
func NewCredentials(repo domain.IdentityRepository) *Credentials {
	return &Credentials{repo: repo, params: DefaultArgon2Params, now: time.Now}
}

// WithParams overrides the hashing cost, mainly to keep tests fast.
func (c *Credentials) WithParams(p Argon2Params) *Credentials {
	c.params = p
	return c
}

// Register stores a credential for email under a fresh subject and returns it.
func (c *Credentials) Register(ctx domain.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < minPasswordLen {
		return "", fmt.Errorf("op=session.register: %w: email and a password of at least %d characters are required", domain.ErrInvalidArgument, minPasswordLen)
	}
	hash, err := HashPassword(password, c.params)
	if err != nil {
		return "", fmt.Errorf("op=session.register: %w", err)
	}
	subject := uuid.NewString()
	err = c.repo.CreateIdentity(ctx, domain.Identity{
		Subject:      subject,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    c.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("op=session.register: %w", err)
	}
	return subject, nil
}

// Authenticate returns the subject bound to email when password matches.
func (c *Credentials) Authenticate(ctx domain.Context, email, password string) (string, error) {
	id, err := c.repo.GetIdentityByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("op=session.authenticate: %w: invalid email or password", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("op=session.authenticate: %w", err)
	}
	if id.Disabled || !VerifyPassword(password, id.PasswordHash) {
		return "", fmt.Errorf("op=session.authenticate: %w: invalid email or password", domain.ErrUnauthorized)
	}
	return id.Subject, nil
}

// Rebind points the credential for email at subject and returns the previous subject.
func (c *Credentials) Rebind(ctx domain.Context, email, subject string) (string, error) {
	prev, err := c.repo.RebindIdentity(ctx, strings.ToLower(strings.TrimSpace(email)), subject)
	if err != nil {
		return "", fmt.Errorf("op=session.rebind: %w", err)
	}
	return prev, nil
}

// Deactivate disables every credential still bound to subject.
func (c *Credentials) Deactivate(ctx domain.Context, subject string) error {
	if err := c.repo.DisableIdentity(ctx, subject); err != nil {
		return fmt.Errorf("op=session.deactivate: %w", err)
	}
	return nil
}
