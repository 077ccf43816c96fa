package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/studykit/study-cli/pkg/gemini"
)

// ErrNoCredentials is returned when the invoker is asked to generate
// with an empty credential or model list. It is a configuration
// problem and is never retried.
var ErrNoCredentials = errors.New("resilience: no API credentials configured")

// FailureKind classifies a single attempt outcome.
type FailureKind string

const (
	// KindRateLimited covers 429/403 responses and quota-style
	// transport errors. Cheap to retry against a different pair
	// immediately.
	KindRateLimited FailureKind = "rate_limited"
	// KindModelUnavailable covers 400/404 responses: the model name
	// is invalid or not served by this credential. Retry with the
	// next pair.
	KindModelUnavailable FailureKind = "model_unavailable"
	// KindTransport covers network-level failures with no HTTP
	// status. Retried after a short fixed delay.
	KindTransport FailureKind = "transport"
	// KindUnexpectedStatus covers any other non-2xx response. Fatal.
	KindUnexpectedStatus FailureKind = "unexpected_status"
	// KindSafetyBlocked means the response was safety-flagged. Fatal:
	// deterministic for the prompt.
	KindSafetyBlocked FailureKind = "safety_blocked"
	// KindMalformed means a 2xx response missing the expected text.
	// Fatal for the same reason.
	KindMalformed FailureKind = "malformed_response"
)

// FatalError aborts the rotation immediately: retrying the same prompt
// against another pair would not change the outcome.
type FatalError struct {
	Kind FailureKind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("resilience: fatal %s: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ExhaustedError is returned after every (credential, model) pair was
// tried without success. It carries the last recorded failure.
type ExhaustedError struct {
	Attempts int
	LastKind FailureKind
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resilience: all %d credential/model pairs exhausted, last failure %s: %v",
		e.Attempts, e.LastKind, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Classify maps an attempt error to its FailureKind. Typed errors from
// the gemini client are classified structurally; transport errors fall
// back to network error checks and, last, message heuristics for
// quota-style failures surfaced by intermediaries.
func Classify(err error) FailureKind {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 403:
			return KindRateLimited
		case 400, 404:
			return KindModelUnavailable
		default:
			return KindUnexpectedStatus
		}
	}

	var contentErr *gemini.ContentError
	if errors.As(err, &contentErr) {
		if contentErr.Reason == gemini.ReasonSafetyBlocked {
			return KindSafetyBlocked
		}
		return KindMalformed
	}

	if isQuotaMessage(err) {
		return KindRateLimited
	}
	return KindTransport
}

// IsFatal reports whether a kind aborts the rotation instead of
// advancing to the next pair.
func IsFatal(kind FailureKind) bool {
	switch kind {
	case KindUnexpectedStatus, KindSafetyBlocked, KindMalformed:
		return true
	default:
		return false
	}
}

// isQuotaMessage detects rate-limit/quota failures that arrive as
// plain transport errors (proxies, SDK wrappers) rather than typed
// API errors.
func isQuotaMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"rate limit",
		"quota",
		"resource exhausted",
		"too many requests",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient reports whether a transport error looks like a
// recoverable network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
