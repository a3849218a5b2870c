package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// AccountDecision is the outcome of resolving an email against the user directory.
// It is computed once per invitation or sign-up and drives the merge-or-create path.
type AccountDecision int

const (
	NoAccount AccountDecision = iota
	ExistingUser
	ExistingTemporaryAccount
)

func (d AccountDecision) String() string {
	switch d {
	case ExistingUser:
		return "existing_user"
	case ExistingTemporaryAccount:
		return "existing_temporary_account"
	default:
		return "no_account"
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// resolveAccount looks the email up and classifies it.
func resolveAccount(ctx domain.Context, users domain.UserRepository, email string) (AccountDecision, domain.User, error) {
	u, err := users.FindByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NoAccount, domain.User{}, nil
	case err != nil:
		return NoAccount, domain.User{}, fmt.Errorf("op=account.resolve: %w", err)
	case u.TemporaryAccount:
		return ExistingTemporaryAccount, u, nil
	default:
		return ExistingUser, u, nil
	}
}

// displayNameFor falls back to the local part of the email.
func displayNameFor(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
