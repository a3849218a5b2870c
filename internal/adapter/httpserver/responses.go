// Package httpserver contains the JSON API handlers, the session gateway
// middleware and the error envelope.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

const (
	msgSignIn      = "Unauthorized. Please sign in first."
	msgAdminOnly   = "Unauthorized. Admin access required."
	msgInternal    = "internal server error"
	msgUpstream    = "upstream service failed, please retry"
	msgUnavailable = "upstream service unavailable, please retry"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrSchemaInvalid):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return http.StatusTooManyRequests, "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrFeedbackParse):
		return http.StatusBadGateway, "UPSTREAM_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError renders the error envelope. 5xx responses carry a fixed message;
// the full error is logged against the request.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	status, code := statusFor(err)
	msg := publicMessage(err)
	switch {
	case status == http.StatusServiceUnavailable:
		msg = msgUnavailable
	case status == http.StatusBadGateway:
		msg = msgUpstream
	case status >= 500:
		msg = msgInternal
	}
	if status >= 500 {
		LoggerFrom(r).Error("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg, Details: details}})
}

var sentinelText = map[string]bool{}

func init() {
	for _, e := range []error{
		domain.ErrInvalidArgument, domain.ErrUnauthorized, domain.ErrForbidden, domain.ErrNotFound,
		domain.ErrConflict, domain.ErrRateLimited, domain.ErrSchemaInvalid,
	} {
		sentinelText[e.Error()] = true
	}
}

// publicMessage drops the op=component.action prefixes added while wrapping,
// and the sentinel text when a more specific reason follows it.
func publicMessage(err error) string {
	parts := strings.Split(err.Error(), ": ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "op=") {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && sentinelText[out[0]] {
		out = out[1:]
	}
	return strings.Join(out, ": ")
}
