package examgen

import (
	"context"
	"time"

	"github.com/abhisek/examgen/internal/errs"
)

// RetryGenerator re-runs a whole generation when it failed on model output
// or infrastructure. Input and retrieval failures are returned at once, as
// running again cannot change them.
type RetryGenerator struct {
	inner    Generator
	attempts int
	wait     time.Duration
}

// WithRetries wraps g so that it is tried up to attempts times, sleeping
// wait between tries. attempts below 2 returns g unchanged.
func WithRetries(g Generator, attempts int, wait time.Duration) Generator {
	if attempts < 2 {
		return g
	}
	return &RetryGenerator{inner: g, attempts: attempts, wait: wait}
}

func (r *RetryGenerator) Generate(ctx context.Context, req ExamRequest) ([]ExamQuestion, error) {
	var lastErr error
	for attempt := range r.attempts {
		qs, err := r.inner.Generate(ctx, req)
		if err == nil {
			return qs, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(r.wait):
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	switch errs.CategoryOf(err) {
	case errs.CategoryModelOutput, errs.CategoryInfrastructure:
		return true
	default:
		return false
	}
}
