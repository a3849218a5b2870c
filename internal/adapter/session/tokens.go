package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const (
	issuer        = "ai-mock-interviewer"
	sessionPrefix = "session:"
)

// TokenIssuer is the SessionManager: HS256 JWTs whose jti is optionally
// tracked in Redis so a signed-out token stops verifying before it expires.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	cache  redis.Cmdable
	now    func() time.Time
}

// NewTokenIssuer builds an issuer. cache may be nil, in which case tokens
// are valid until expiry and Revoke is a no-op.
func NewTokenIssuer(secret []byte, ttl time.Duration, cache redis.Cmdable) *TokenIssuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, cache: cache, now: time.Now}
}

// Issue signs a session for subject.
func (t *TokenIssuer) Issue(ctx domain.Context, subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("op=session.issue: %w: empty subject", domain.ErrInvalidArgument)
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	jti := ulid.Make().String()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("op=session.issue: %w", err)
	}
	if t.cache != nil {
		if err := t.cache.Set(ctx, sessionPrefix+jti, subject, t.ttl).Err(); err != nil {
			return "", time.Time{}, fmt.Errorf("op=session.issue: %w", err)
		}
	}
	return signed, exp, nil
}

// Verify returns the subject of a valid, unrevoked token.
func (t *TokenIssuer) Verify(ctx domain.Context, token string) (string, error) {
	claims, err := t.parse(token)
	if err != nil {
		return "", fmt.Errorf("op=session.verify: %w", err)
	}
	if t.cache == nil {
		return claims.Subject, nil
	}
	subject, err := t.cache.Get(ctx, sessionPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("op=session.verify: %w: session revoked", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("op=session.verify: %w", err)
	}
	if subject != claims.Subject {
		return "", fmt.Errorf("op=session.verify: %w: subject mismatch", domain.ErrUnauthorized)
	}
	return subject, nil
}

// Revoke forgets the token's jti. Invalid or expired tokens need no revocation.
func (t *TokenIssuer) Revoke(ctx domain.Context, token string) error {
	if t.cache == nil {
		return nil
	}
	claims, err := t.parse(token)
	if err != nil {
		return nil
	}
	if err := t.cache.Del(ctx, sessionPrefix+claims.ID).Err(); err != nil {
		return fmt.Errorf("op=session.revoke: %w", err)
	}
	return nil
}

func (t *TokenIssuer) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid session token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete session claims", domain.ErrUnauthorized)
	}
	return claims, nil
}
