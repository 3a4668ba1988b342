package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Retryable: IsRateLimit}

	calls := 0
	sentinel := errors.New("malformed output")
	err := Do(context.Background(), policy, func() error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Expected sentinel error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDo_RetriesRateLimitUpToMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Retryable: IsRateLimit}

	calls := 0
	rateLimited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
	err := Do(context.Background(), policy, func() error {
		calls++
		return rateLimited
	})

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls != 4 {
		t.Errorf("Expected 4 attempts, got %d", calls)
	}
}

func TestDo_RecoversAfterRateLimit(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Retryable: IsRateLimit}

	calls := 0
	err := Do(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected recovery, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Minute, Retryable: IsRateLimit}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, policy, func() error {
		return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}) {
		t.Error("Expected 429 APIError to be a rate limit")
	}
	if IsRateLimit(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError}) {
		t.Error("Expected 500 APIError not to be a rate limit")
	}
	if IsRateLimit(errors.New("plain error")) {
		t.Error("Expected plain error not to be a rate limit")
	}
}
