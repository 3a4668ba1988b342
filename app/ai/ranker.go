package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knowhub/knowhub/app/database"
)

// Candidate is the compact projection of a stored article sent to the
// re-ranking call.
type Candidate struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Score      int    `json:"score"`
	SourceKind string `json:"source_type"`
	URL        string `json:"url"`
}

// NewCandidate projects an article for the ranking prompt.
func NewCandidate(a database.Article) Candidate {
	return Candidate{
		ID:         a.ID,
		Title:      a.Title,
		Summary:    a.SummaryLocal,
		Score:      a.Score,
		SourceKind: a.SourceKind,
		URL:        a.URL,
	}
}

// Ranked is one entry of the model's re-ordered result list.
type Ranked struct {
	ID            int64  `json:"id"`
	RelevanceNote string `json:"relevance_note"`
	RankScore     int    `json:"rank_score"`
}

// Ranker re-scores a bounded candidate list against the original query.
type Ranker struct {
	generator Generator
}

func NewRanker(generator Generator) *Ranker {
	return &Ranker{generator: generator}
}

// Rank returns the model's re-ordered list. Callers are expected to fall
// back to the original order when this fails.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []Candidate) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	prompt := fmt.Sprintf(`A user searched for: %q

Search results as JSON:
%s

Re-rank the results by relevance to the query. For each result, explain in a
short note why it is relevant.

Respond with a JSON array only, in exactly this format:
[
  {"id": result id, "relevance_note": "why this result is relevant", "rank_score": integer 0-100}
]`, query, string(payload))

	raw, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ranking call failed: %w", err)
	}

	var ranked []Ranked
	if err := decode(raw, &ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}
