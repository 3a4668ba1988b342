package ai

import (
	"context"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// fakeGenerator returns canned responses in sequence, repeating the last one.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return f.responses[idx], err
}

const validClassification = "```json\n" + `{
	"category": "LLM",
	"tags": ["transformers", "inference", "benchmarks"],
	"company_tags": ["OpenAI"],
	"priority_label": "HIGH",
	"trust_level": "HIGH",
	"trust_reason": "Official vendor announcement.",
	"summary_local": "line one\nline two\nline three",
	"business_point": "Cuts inference cost.",
	"score_details": {"relevance": 35, "reliability": 25, "freshness": 15, "virality": 5}
}` + "\n```"

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Retryable: IsRateLimit}
}

func TestClassify_ValidOutput(t *testing.T) {
	gen := &fakeGenerator{responses: []string{validClassification}}
	classifier := NewClassifier(gen, testPolicy(), "English")

	result, err := classifier.Classify(context.Background(), "New model released", "some text", "rss")
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}

	if result.Category != "LLM" {
		t.Errorf("Expected category LLM, got %s", result.Category)
	}
	if result.PriorityLabel != "HIGH" {
		t.Errorf("Expected priority HIGH, got %s", result.PriorityLabel)
	}
	if result.Score() != 80 {
		t.Errorf("Expected score 80 (sum of sub-scores), got %d", result.Score())
	}
}

func TestClassify_ScoreEqualsSumOfSubScores(t *testing.T) {
	gen := &fakeGenerator{responses: []string{validClassification}}
	classifier := NewClassifier(gen, testPolicy(), "")

	result, err := classifier.Classify(context.Background(), "t", "x", "rss")
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}

	s := result.ScoreDetails
	expected := s.Relevance + s.Reliability + s.Freshness + s.Virality
	if result.Score() != expected {
		t.Errorf("Score %d does not equal sub-score sum %d", result.Score(), expected)
	}
}

func TestClassify_MalformedOutputNotRetried(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"I cannot answer that."}}
	classifier := NewClassifier(gen, testPolicy(), "")

	_, err := classifier.Classify(context.Background(), "t", "x", "rss")
	if err == nil {
		t.Fatal("Expected error for malformed output")
	}
	if gen.calls != 1 {
		t.Errorf("Expected 1 call (no retry on malformed output), got %d", gen.calls)
	}
}

func TestClassify_NonJSONAfterRateLimitRetries(t *testing.T) {
	rateLimited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
	gen := &fakeGenerator{
		responses: []string{"", "", "not json"},
		errs:      []error{rateLimited, rateLimited, nil},
	}
	classifier := NewClassifier(gen, testPolicy(), "")

	_, err := classifier.Classify(context.Background(), "t", "x", "rss")
	if err == nil {
		t.Fatal("Expected error for non-JSON output after retries")
	}
	if gen.calls != 3 {
		t.Errorf("Expected 3 calls (2 rate-limited + 1 malformed), got %d", gen.calls)
	}
}

func TestValidate_RejectsOutOfRangeSubScore(t *testing.T) {
	c := Classification{
		Category:      "LLM",
		Tags:          []string{"a"},
		PriorityLabel: "LOW",
		TrustLevel:    "LOW",
	}
	c.ScoreDetails.Relevance = 55 // above the 40 cap

	if err := c.Validate(); err == nil {
		t.Error("Expected validation error for relevance above bound")
	}
}

func TestValidate_RejectsUnknownCategory(t *testing.T) {
	c := Classification{
		Category:      "Astrology",
		Tags:          []string{"a"},
		PriorityLabel: "LOW",
		TrustLevel:    "LOW",
	}

	if err := c.Validate(); err == nil {
		t.Error("Expected validation error for unknown category")
	}
}

func TestDefaultClassification_IsValid(t *testing.T) {
	if err := DefaultClassification().Validate(); err != nil {
		t.Errorf("Default classification should validate, got: %v", err)
	}
}
