package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Retry policy defaults: three attempts, 5s then 10s between them.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
)

// errNotJSON marks a model or endpoint response that was not JSON at all.
var errNotJSON = errors.New("response is not JSON")

// RetryController retries rate-limited and transient failures with a
// linear backoff of BaseDelay × attempt.
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryController creates a controller. Non-positive values fall back
// to the defaults.
func NewRetryController(maxAttempts int, baseDelay time.Duration) *RetryController {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &RetryController{maxAttempts: maxAttempts, baseDelay: baseDelay, sleep: sleepCtx}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. onRetry, if set, is called with the number of the
// attempt about to start.
func (r *RetryController) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int)) error {
	var lastErr *EvaluationError
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = classifyError(err)
		if !lastErr.Retryable() {
			return lastErr
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := r.baseDelay * time.Duration(attempt)
		slog.Warn(
			"Model call failed, will retry.",
			"attempt", attempt,
			"maxAttempts", r.maxAttempts,
			"backoff", delay.String(),
			"kind", lastErr.Kind,
			"error", lastErr.Err,
		)
		if onRetry != nil {
			onRetry(attempt + 1)
		}
		if err := r.sleep(ctx, delay); err != nil {
			slog.Error("Context cancelled during backoff. Aborting retries.", "error", err)
			return transientError(err)
		}
	}

	slog.Error("Model call failed after all retries.", "kind", lastErr.Kind, "error", lastErr.Err)
	if errors.Is(lastErr, errNotJSON) {
		return schemaViolationError(lastErr.Err)
	}
	return rateLimitExceededError(lastErr.Err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classifyError maps provider and transport errors onto the taxonomy.
// Anything unrecognised is internal and not retried.
func classifyError(err error) *EvaluationError {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return transientError(err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(gerr.Code, err)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return rateLimitedError(err)
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return transientError(err)
		case codes.PermissionDenied, codes.Unauthenticated:
			return accessError(err)
		}
	}
	return internalError(err)
}

// classifyStatus maps an HTTP status code from a collaborator.
func classifyStatus(code int, err error) *EvaluationError {
	switch {
	case code == http.StatusTooManyRequests:
		return rateLimitedError(err)
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return transientError(err)
	case code == http.StatusForbidden, code == http.StatusUnauthorized:
		return accessError(err)
	default:
		return internalError(err)
	}
}
