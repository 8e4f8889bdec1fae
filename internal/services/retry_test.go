package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordingController returns a controller whose sleeps are recorded
// instead of taken.
func recordingController() (*RetryController, *[]time.Duration) {
	var delays []time.Duration
	rc := NewRetryController(0, 0)
	rc.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return rc, &delays
}

func TestRetry_RateLimitExhausted(t *testing.T) {
	rc, delays := recordingController()
	var retries []int
	calls := 0

	err := rc.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}
	}, func(attempt int) { retries = append(retries, attempt) })

	require.Error(t, err)
	assert.True(t, IsKind(err, KindRateLimitExceeded))
	assert.Equal(t, http.StatusTooManyRequests, AsEvaluationError(err).Status())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *delays)
	assert.Equal(t, []int{2, 3}, retries)
}

func TestRetry_NotJSONThenSuccess(t *testing.T) {
	rc, delays := recordingController()
	calls := 0

	err := rc.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return transientError(fmt.Errorf("%w: <html>502</html>", errNotJSON))
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, *delays)
}

func TestRetry_NotJSONExhaustedIsSchemaViolation(t *testing.T) {
	rc, _ := recordingController()
	err := rc.Do(context.Background(), func(ctx context.Context) error {
		return transientError(fmt.Errorf("%w: garbage", errNotJSON))
	}, nil)
	assert.True(t, IsKind(err, KindSchemaViolation))
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{name: "schema violation", err: schemaViolationError(errors.New("missing key 7")), kind: KindSchemaViolation},
		{name: "invalid link", err: invalidLinkError(errors.New("bad")), kind: KindInvalidLink},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "no"), kind: KindAccess},
		{name: "unknown", err: errors.New("boom"), kind: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, delays := recordingController()
			calls := 0
			err := rc.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			}, nil)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, *delays)
		})
	}
}

func TestRetry_GRPCResourceExhaustedRecovers(t *testing.T) {
	rc, delays := recordingController()
	calls := 0
	err := rc.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return status.Error(codes.ResourceExhausted, "quota exceeded")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Len(t, *delays, 2)
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	rc := NewRetryController(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rc.Do(ctx, func(ctx context.Context) error {
		return status.Error(codes.Unavailable, "down")
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
