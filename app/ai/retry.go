package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RetryPolicy describes how an external call is retried: how many attempts,
// how long the first wait is, and which errors are worth retrying at all.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries rate-limited calls up to 4 attempts with
// exponential backoff. Malformed output and other errors fail immediately.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		Retryable:   IsRateLimit,
	}
}

// Do runs fn under the policy. The wait before attempt n is
// BaseDelay * 2^(n-1). A non-retryable error or context cancellation is
// returned as-is.
func Do(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.BaseDelay << (attempt - 1)
			slog.Warn("Retrying after backoff", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if policy.Retryable == nil || !policy.Retryable(err) {
			return err
		}
	}
	return err
}

// IsRateLimit reports whether the error is a rate-limit signal from the
// text-generation service.
func IsRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
