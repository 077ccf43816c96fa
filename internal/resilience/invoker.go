package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studykit/study-cli/internal/rotation"
	"github.com/studykit/study-cli/pkg/gemini"
)

// Backend issues one generation request against a specific
// credential/model pair. Satisfied by gemini.Client.
type Backend interface {
	GenerateContent(ctx context.Context, credential, model, prompt string, cfg gemini.GenerationConfig) (string, error)
}

// Invoker wraps a Backend with credential/model rotation. Each call
// attempts at most one full rotation cycle, advancing the shared
// cursor on every attempt (including the last, so the cursor position
// after a failed cycle is not rewound to where it started).
type Invoker struct {
	backend    Backend
	rotator    *rotation.Rotator
	retryDelay time.Duration
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRetryDelay overrides the fixed delay applied after an
// unclassified transport failure. Default 500ms.
func WithRetryDelay(d time.Duration) InvokerOption {
	return func(iv *Invoker) {
		iv.retryDelay = d
	}
}

// NewInvoker creates an Invoker over the given backend and rotator.
func NewInvoker(backend Backend, rotator *rotation.Rotator, opts ...InvokerOption) *Invoker {
	iv := &Invoker{
		backend:    backend,
		rotator:    rotator,
		retryDelay: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(iv)
	}
	return iv
}

// Generate runs the attempt loop: up to Pairs() attempts, drawing the
// next pair from the rotator each time. Rate-limit and invalid-model
// failures advance to the next pair with no delay; other transport
// failures wait retryDelay first (never after the final attempt);
// fatal classifications abort immediately. Returns ErrNoCredentials,
// *FatalError, or *ExhaustedError on failure.
func (iv *Invoker) Generate(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error) {
	total := iv.rotator.Pairs()
	if total == 0 {
		return "", ErrNoCredentials
	}

	var lastKind FailureKind
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= total; attempt++ {
		attempts = attempt
		credential, model := iv.rotator.Next()

		text, err := iv.backend.GenerateContent(ctx, credential, model, prompt, cfg)
		if err == nil {
			return text, nil
		}

		kind := Classify(err)
		if IsFatal(kind) {
			return "", &FatalError{Kind: kind, Err: err}
		}

		lastKind = kind
		lastErr = err
		zap.L().Warn("generation attempt failed, rotating",
			zap.Int("attempt", attempt),
			zap.Int("total", total),
			zap.String("model", model),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			break
		}

		// Quota and invalid-model failures rotate instantly; only
		// unclassified transport errors get a backoff, and never
		// after the final attempt.
		if kind == KindTransport && attempt < total {
			timer := time.NewTimer(iv.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", &ExhaustedError{Attempts: attempt, LastKind: lastKind, LastErr: lastErr}
			case <-timer.C:
			}
		}
	}

	return "", &ExhaustedError{Attempts: attempts, LastKind: lastKind, LastErr: lastErr}
}
