package redpanda

import (
	"errors"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// failureCode maps a pipeline error to a stable metrics label matching the
// API error codes.
func failureCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrSchemaInvalid), errors.Is(err, domain.ErrFeedbackParse):
		return "SCHEMA_INVALID"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstream):
		return "UPSTREAM"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
