package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/observability"
)

// IdentityService is the session gateway: it resolves session tokens to users
// and owns the sign-up merge of temporary accounts.
type IdentityService struct {
	Users    domain.UserRepository
	Identity domain.IdentityProvider
	Sessions domain.SessionManager
	Now      func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(users domain.UserRepository, idp domain.IdentityProvider, sessions domain.SessionManager) IdentityService {
	return IdentityService{Users: users, Identity: idp, Sessions: sessions, Now: nowUTC}
}

// CurrentUser resolves a session token. Any failure is ErrUnauthorized.
func (s IdentityService) CurrentUser(ctx domain.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, fmt.Errorf("%w: missing session", domain.ErrUnauthorized)
	}
	subject, err := s.Sessions.Verify(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	u, err := s.Users.Get(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: unknown subject", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("op=identity.current_user: %w", err)
	}
	return u, nil
}

// RequireRole returns ErrForbidden unless u holds role.
func RequireRole(u domain.User, role domain.Role) error {
	if u.Role != role {
		return fmt.Errorf("%w: %s role required", domain.ErrForbidden, role)
	}
	return nil
}

// SignUpInput is a self-registration request.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUp registers credentials and applies the account decision for the email:
// an existing permanent user is a conflict, a temporary account is converted in
// place and the fresh identity is rebound to it, otherwise a new user is created.
func (s IdentityService) SignUp(ctx domain.Context, in SignUpInput) (domain.User, AccountDecision, error) {
	lg := observability.LoggerFromContext(ctx)
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, NoAccount, fmt.Errorf("%w: email and password are required", domain.ErrInvalidArgument)
	}
	decision, existing, err := resolveAccount(ctx, s.Users, email)
	if err != nil {
		return domain.User{}, decision, err
	}
	if decision == ExistingUser {
		return domain.User{}, decision, fmt.Errorf("%w: User already exists", domain.ErrConflict)
	}

	uid, err := s.Identity.Register(ctx, email, in.Password)
	if err != nil {
		return domain.User{}, decision, fmt.Errorf("op=identity.sign_up: %w", err)
	}

	switch decision {
	case ExistingTemporaryAccount:
		name := displayNameFor(in.Name, existing.Name)
		if err := s.Users.ConvertTemporary(ctx, existing.ID, name); err != nil {
			s.deactivate(ctx, uid)
			return domain.User{}, decision, fmt.Errorf("op=identity.sign_up: %w", err)
		}
		prev, err := s.Identity.Rebind(ctx, email, existing.ID)
		if err != nil {
			return domain.User{}, decision, fmt.Errorf("op=identity.sign_up: %w", err)
		}
		if prev != "" && prev != existing.ID {
			s.deactivate(ctx, prev)
		}
		existing.Name = name
		existing.TemporaryAccount = false
		lg.Info("temporary account converted on sign-up", slog.String("user_id", existing.ID))
		return existing, decision, nil
	default:
		u := domain.User{
			ID:        uid,
			Name:      displayNameFor(in.Name, email),
			Email:     email,
			Role:      domain.RoleUser,
			CreatedAt: s.Now(),
		}
		if err := s.Users.Create(ctx, u); err != nil {
			s.deactivate(ctx, uid)
			return domain.User{}, decision, fmt.Errorf("op=identity.sign_up: %w", err)
		}
		return u, decision, nil
	}
}

func (s IdentityService) deactivate(ctx domain.Context, subject string) {
	if err := s.Identity.Deactivate(ctx, subject); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to deactivate duplicate identity",
			slog.String("subject", subject), slog.Any("error", err))
	}
}

// ConvertTemporaryUser is the explicit conversion action. First writer wins;
// converting an already permanent account is ErrConflict.
func (s IdentityService) ConvertTemporaryUser(ctx domain.Context, email, name string) (domain.User, error) {
	decision, u, err := resolveAccount(ctx, s.Users, email)
	if err != nil {
		return domain.User{}, err
	}
	switch decision {
	case NoAccount:
		return domain.User{}, fmt.Errorf("%w: no account for %s", domain.ErrNotFound, normalizeEmail(email))
	case ExistingUser:
		return domain.User{}, fmt.Errorf("%w: account is already permanent", domain.ErrConflict)
	}
	name = displayNameFor(name, u.Name)
	if err := s.Users.ConvertTemporary(ctx, u.ID, name); err != nil {
		return domain.User{}, fmt.Errorf("op=identity.convert: %w", err)
	}
	u.Name, u.TemporaryAccount = name, false
	return u, nil
}

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// SignIn verifies credentials and issues a session.
func (s IdentityService) SignIn(ctx domain.Context, email, password string) (Session, error) {
	subject, err := s.Identity.Authenticate(ctx, normalizeEmail(email), password)
	if err != nil {
		return Session{}, fmt.Errorf("op=identity.sign_in: %w", err)
	}
	u, err := s.Users.Get(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: account does not exist, please sign up", domain.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("op=identity.sign_in: %w", err)
	}
	tok, exp, err := s.Sessions.Issue(ctx, subject)
	if err != nil {
		return Session{}, fmt.Errorf("op=identity.sign_in: %w", err)
	}
	return Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// SignOut revokes a session token.
func (s IdentityService) SignOut(ctx domain.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.Sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("op=identity.sign_out: %w", err)
	}
	return nil
}

// EnsureAdmin creates an admin account with credentials when none exists for email.
func (s IdentityService) EnsureAdmin(ctx domain.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	decision, _, err := resolveAccount(ctx, s.Users, email)
	if err != nil || decision == ExistingUser {
		return err
	}
	if decision == ExistingTemporaryAccount {
		return fmt.Errorf("%w: %s is a pending invitee", domain.ErrConflict, email)
	}
	uid, err := s.Identity.Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("op=identity.ensure_admin: %w", err)
	}
	u := domain.User{ID: uid, Name: displayNameFor("", email), Email: email, Role: domain.RoleAdmin, CreatedAt: s.Now()}
	if err := s.Users.Create(ctx, u); err != nil {
		return fmt.Errorf("op=identity.ensure_admin: %w", err)
	}
	return nil
}
