// Package postgres is the primary Document Store backend.
//
// Every repository takes a PgxPool so unit tests can script rows without a
// database; the integration suite runs the same code against a real server.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ domain.InterviewRepository   = (*InterviewRepo)(nil)
	_ domain.InvitationRepository  = (*InvitationRepo)(nil)
	_ domain.UserRepository        = (*UserRepo)(nil)
	_ domain.TranscriptRepository  = (*TranscriptRepo)(nil)
	_ domain.FeedbackRepository    = (*FeedbackRepo)(nil)
	_ domain.FeedbackJobRepository = (*FeedbackJobRepo)(nil)
	_ domain.IdentityRepository    = (*IdentityRepo)(nil)
)

type scanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

var errNoRows = pgx.ErrNoRows

func startSpan(ctx context.Context, table, operation, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("repo."+table).Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
	)
	return ctx, span
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// dbErr maps driver errors onto the domain taxonomy.
func dbErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("op=%s: %w: %v", op, domain.ErrConflict, err)
	default:
		return fmt.Errorf("op=%s: %w", op, err)
	}
}

// likePrefix escapes LIKE metacharacters and appends the wildcard.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(strings.TrimSpace(prefix))) + "%"
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
