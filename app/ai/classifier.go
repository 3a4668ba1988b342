package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowhub/knowhub/app/database"
)

// Article categories the classifier may assign.
var Categories = []string{
	"LLM",
	"Image Generation",
	"Agents",
	"Dev Tools",
	"Research",
	"Business",
	"General",
}

// Priority labels, ordered from most to least urgent.
var Priorities = []string{"BREAKING", "HOT", "HIGH", "MEDIUM", "LOW"}

// Trust levels.
var TrustLevels = []string{"HIGH", "MEDIUM", "LOW"}

// Sub-score upper bounds. The aggregate score is the sum, capped at 100 by
// construction.
const (
	MaxRelevance   = 40
	MaxReliability = 30
	MaxFreshness   = 20
	MaxVirality    = 10
)

// Classification is the structured result of one classifier call.
type Classification struct {
	Category      string                `json:"category"`
	Tags          []string              `json:"tags"`
	CompanyTags   []string              `json:"company_tags"`
	PriorityLabel string                `json:"priority_label"`
	TrustLevel    string                `json:"trust_level"`
	TrustReason   string                `json:"trust_reason"`
	SummaryLocal  string                `json:"summary_local"`
	BusinessPoint string                `json:"business_point"`
	ScoreDetails  database.ScoreDetails `json:"score_details"`
}

// Score returns the aggregate score: the sum of the four sub-scores.
func (c Classification) Score() int {
	return c.ScoreDetails.Total()
}

// Validate fails fast on values outside the closed enumerations or the
// documented score bounds.
func (c Classification) Validate() error {
	if !contains(Categories, c.Category) {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("unknown category %q", c.Category)}
	}
	if !contains(Priorities, c.PriorityLabel) {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("unknown priority %q", c.PriorityLabel)}
	}
	if !contains(TrustLevels, c.TrustLevel) {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("unknown trust level %q", c.TrustLevel)}
	}
	if len(c.Tags) == 0 {
		return &ErrMalformedOutput{Reason: "no tags assigned"}
	}
	s := c.ScoreDetails
	if s.Relevance < 0 || s.Relevance > MaxRelevance {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("relevance %d out of range", s.Relevance)}
	}
	if s.Reliability < 0 || s.Reliability > MaxReliability {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("reliability %d out of range", s.Reliability)}
	}
	if s.Freshness < 0 || s.Freshness > MaxFreshness {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("freshness %d out of range", s.Freshness)}
	}
	if s.Virality < 0 || s.Virality > MaxVirality {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("virality %d out of range", s.Virality)}
	}
	return nil
}

// Default returns the placeholder classification used when the fail policy
// persists items whose classification failed.
func DefaultClassification() Classification {
	return Classification{
		Category:      "General",
		Tags:          []string{"unclassified"},
		CompanyTags:   []string{},
		PriorityLabel: "LOW",
		TrustLevel:    "LOW",
		TrustReason:   "Classification unavailable.",
		ScoreDetails: database.ScoreDetails{
			Relevance:   10,
			Reliability: 10,
			Freshness:   10,
			Virality:    5,
		},
	}
}

// Classifier asks the text-generation service to categorize and score one
// item.
type Classifier struct {
	generator Generator
	policy    RetryPolicy
	language  string
}

func NewClassifier(generator Generator, policy RetryPolicy, summaryLanguage string) *Classifier {
	return &Classifier{
		generator: generator,
		policy:    policy,
		language:  langOrDefault(summaryLanguage),
	}
}

// Classify sends the item to the model and decodes the constrained JSON
// response. Rate limits are retried per the policy; a decode or validation
// failure is returned immediately.
func (c *Classifier) Classify(ctx context.Context, title, text, sourceKind string) (Classification, error) {
	prompt := c.buildPrompt(title, text, sourceKind)

	var raw string
	err := Do(ctx, c.policy, func() error {
		var genErr error
		raw, genErr = c.generator.Generate(ctx, prompt)
		return genErr
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classification call failed: %w", err)
	}

	var result Classification
	if err := decode(raw, &result); err != nil {
		return Classification{}, err
	}
	if err := result.Validate(); err != nil {
		return Classification{}, err
	}
	return result, nil
}

func (c *Classifier) buildPrompt(title, text, sourceKind string) string {
	return fmt.Sprintf(`Analyze the following content and respond with a single JSON object in exactly this format.

Title: %s
Source kind: %s
Content: %s

Required JSON output:
{
  "category": one of %s,
  "tags": [3-5 tags covering technologies and concepts],
  "company_tags": [0-3 related company names, empty array if none],
  "priority_label": one of %s,
  "trust_level": one of %s,
  "trust_reason": "one sentence explaining the trust level",
  "summary_local": "a three-line summary written in %s",
  "business_point": "one sentence on the business impact",
  "score_details": {
    "relevance": integer 0-%d,
    "reliability": integer 0-%d,
    "freshness": integer 0-%d,
    "virality": integer 0-%d
  }
}

Return the JSON object only, no other text.`,
		title, sourceKind, text,
		quotedList(Categories), quotedList(Priorities), quotedList(TrustLevels),
		c.language,
		MaxRelevance, MaxReliability, MaxFreshness, MaxVirality)
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, " | ")
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func langOrDefault(lang string) string {
	l := strings.TrimSpace(lang)
	if l == "" {
		return "Japanese"
	}
	return l
}
