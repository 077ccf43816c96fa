package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studykit/study-cli/internal/rotation"
	"github.com/studykit/study-cli/pkg/gemini"
)

// scriptedBackend returns one response per call, in order. The last
// entry repeats once the script runs out.
type scriptedBackend struct {
	calls   []backendCall
	script  []scriptStep
	scriptI int
}

type backendCall struct {
	credential string
	model      string
}

type scriptStep struct {
	text string
	err  error
}

func (b *scriptedBackend) GenerateContent(_ context.Context, credential, model, _ string, _ gemini.GenerationConfig) (string, error) {
	b.calls = append(b.calls, backendCall{credential: credential, model: model})
	step := b.script[b.scriptI]
	if b.scriptI < len(b.script)-1 {
		b.scriptI++
	}
	return step.text, step.err
}

func alwaysFail(err error) *scriptedBackend {
	return &scriptedBackend{script: []scriptStep{{err: err}}}
}

func TestGenerate_SuccessFirstAttempt(t *testing.T) {
	backend := &scriptedBackend{script: []scriptStep{{text: "hello"}}}
	iv := NewInvoker(backend, rotation.New([]string{"k1"}, []string{"m1"}))

	text, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Errorf("got %q, want %q", text, "hello")
	}
	if len(backend.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(backend.calls))
	}
}

func TestGenerate_NoCredentials(t *testing.T) {
	backend := &scriptedBackend{script: []scriptStep{{text: "never"}}}
	iv := NewInvoker(backend, rotation.New(nil, []string{"m1"}))

	_, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("got %v, want ErrNoCredentials", err)
	}
	if len(backend.calls) != 0 {
		t.Errorf("backend called %d times with no credentials", len(backend.calls))
	}
}

func TestGenerate_RateLimited_ExhaustsEveryPair(t *testing.T) {
	backend := alwaysFail(&gemini.APIError{StatusCode: 429, Body: "quota"})
	rot := rotation.New([]string{"k1", "k2"}, []string{"m1", "m2", "m3"})
	iv := NewInvoker(backend, rot)

	start := time.Now()
	_, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})
	elapsed := time.Since(start)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 6 {
		t.Errorf("Attempts = %d, want 6", exhausted.Attempts)
	}
	if exhausted.LastKind != KindRateLimited {
		t.Errorf("LastKind = %s, want %s", exhausted.LastKind, KindRateLimited)
	}
	if len(backend.calls) != 6 {
		t.Errorf("backend called %d times, want 6 (one per pair)", len(backend.calls))
	}
	// Rate-limit rotation is instant.
	if elapsed > 100*time.Millisecond {
		t.Errorf("rate-limited rotation took %v, expected no delay", elapsed)
	}
}

func TestGenerate_RotatesThroughDistinctPairs(t *testing.T) {
	backend := alwaysFail(&gemini.APIError{StatusCode: 404})
	rot := rotation.New([]string{"k1", "k2"}, []string{"m1", "m2"})
	iv := NewInvoker(backend, rot)

	_, _ = iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})

	seen := make(map[backendCall]bool)
	for _, c := range backend.calls {
		seen[c] = true
	}
	if len(seen) != 4 {
		t.Errorf("saw %d distinct pairs, want 4", len(seen))
	}
}

func TestGenerate_SucceedsMidRotation(t *testing.T) {
	backend := &scriptedBackend{script: []scriptStep{
		{err: &gemini.APIError{StatusCode: 429}},
		{err: &gemini.APIError{StatusCode: 429}},
		{text: "third time lucky"},
	}}
	iv := NewInvoker(backend, rotation.New([]string{"k1", "k2"}, []string{"m1", "m2"}))

	text, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "third time lucky" {
		t.Errorf("got %q", text)
	}
	if len(backend.calls) != 3 {
		t.Errorf("backend called %d times, want 3", len(backend.calls))
	}
}

func TestGenerate_FatalAbortsImmediately(t *testing.T) {
	backend := &scriptedBackend{script: []scriptStep{
		{err: &gemini.APIError{StatusCode: 429}},
		{err: &gemini.ContentError{Reason: gemini.ReasonSafetyBlocked}},
	}}
	iv := NewInvoker(backend, rotation.New([]string{"k1", "k2"}, []string{"m1", "m2"}))

	_, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("got %v, want *FatalError", err)
	}
	if fatal.Kind != KindSafetyBlocked {
		t.Errorf("Kind = %s, want %s", fatal.Kind, KindSafetyBlocked)
	}
	if len(backend.calls) != 2 {
		t.Errorf("backend called %d times, want 2 (abort on fatal)", len(backend.calls))
	}
}

func TestGenerate_UnexpectedStatusIsFatal(t *testing.T) {
	backend := alwaysFail(&gemini.APIError{StatusCode: 500, Body: "internal"})
	iv := NewInvoker(backend, rotation.New([]string{"k1", "k2"}, []string{"m1"}))

	_, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("got %v, want *FatalError", err)
	}
	if len(backend.calls) != 1 {
		t.Errorf("backend called %d times, want 1", len(backend.calls))
	}
}

func TestGenerate_TransportErrorDelaysBetweenAttempts(t *testing.T) {
	backend := alwaysFail(errors.New("dial tcp: connection refused"))
	iv := NewInvoker(backend,
		rotation.New([]string{"k1"}, []string{"m1", "m2", "m3"}),
		WithRetryDelay(20*time.Millisecond),
	)

	start := time.Now()
	_, err := iv.Generate(context.Background(), "prompt", gemini.GenerationConfig{})
	elapsed := time.Since(start)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want *ExhaustedError", err)
	}
	// Two delays (between attempts 1-2 and 2-3), none after the last.
	if elapsed < 40*time.Millisecond {
		t.Errorf("elapsed %v, expected at least two 20ms delays", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("elapsed %v, expected no delay after the final attempt", elapsed)
	}
}

func TestGenerate_ContextCancelledDuringDelay(t *testing.T) {
	backend := alwaysFail(errors.New("dial tcp: connection refused"))
	iv := NewInvoker(backend,
		rotation.New([]string{"k1", "k2"}, []string{"m1", "m2"}),
		WithRetryDelay(5*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := iv.Generate(ctx, "prompt", gemini.GenerationConfig{})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (cancelled during backoff)", exhausted.Attempts)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}

func TestGenerate_SharedCursorNotRewound(t *testing.T) {
	// Two failed calls over a 2-pair rotator must not re-run the same
	// pair order: the cursor carries over between Generate calls.
	backend := alwaysFail(&gemini.APIError{StatusCode: 429})
	rot := rotation.New([]string{"k1"}, []string{"m1", "m2"})
	iv := NewInvoker(backend, rot)

	_, _ = iv.Generate(context.Background(), "a", gemini.GenerationConfig{})
	firstOrder := append([]backendCall(nil), backend.calls...)
	backend.calls = nil
	_, _ = iv.Generate(context.Background(), "b", gemini.GenerationConfig{})

	if len(firstOrder) != 2 || len(backend.calls) != 2 {
		t.Fatalf("expected 2 attempts per call, got %d then %d", len(firstOrder), len(backend.calls))
	}
	if firstOrder[0] != backend.calls[0] {
		return // cursor moved, as expected after an odd wrap
	}
	// With 2 pairs and 2 attempts per call the cursor lands back on the
	// start, so same order is fine; verify both pairs were used.
	if firstOrder[0] == firstOrder[1] {
		t.Error("same pair used twice within one rotation cycle")
	}
}
