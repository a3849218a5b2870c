// Package usecase contains application business logic services.
package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	tokenLength   = 32
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewInvitationToken returns a 32-character token drawn from crypto/rand.
// Bytes at or above the largest multiple of the alphabet size are rejected so
// every character is uniformly distributed.
func NewInvitationToken() (string, error) {
	return newToken(rand.Reader)
}

func newToken(r io.Reader) (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)
	var sb strings.Builder
	sb.Grow(tokenLength)
	buf := make([]byte, tokenLength)
	for sb.Len() < tokenLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("op=token.generate: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			sb.WriteByte(tokenAlphabet[int(b)%len(tokenAlphabet)])
			if sb.Len() == tokenLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// NewULID returns a lexically sortable identifier for messages and jobs.
func NewULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewUUID returns a random identifier for users and feedback documents.
func NewUUID() string { return uuid.NewString() }

func nowUTC() time.Time { return time.Now().UTC() }

func ptr[T any](v T) *T { return &v }
