package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowhub/knowhub/app/database"
)

// Date-range tokens the translator may emit.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
)

// FilterSpec is the structured interpretation of a free-text search query.
// It is consumed once to build a database query and never persisted.
type FilterSpec struct {
	Keyword     string   `json:"keyword"`
	Category    string   `json:"category"`
	SourceKind  string   `json:"source_type"`
	Region      string   `json:"region"`
	DateRange   string   `json:"date_range"`
	Companies   []string `json:"companies"`
	Interpreted string   `json:"interpreted"`
}

// Since maps the coarse date-range token to a published-at lower bound.
// An empty or unknown token means no bound.
func (f FilterSpec) Since(now time.Time) *time.Time {
	var t time.Time
	switch f.DateRange {
	case RangeToday:
		t = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case RangeWeek:
		t = now.AddDate(0, 0, -7)
	case RangeMonth:
		t = now.AddDate(0, 0, -30)
	default:
		return nil
	}
	return &t
}

// ToSearch converts the spec into the repository's filter shape.
func (f FilterSpec) ToSearch(now time.Time) database.SearchFilter {
	return database.SearchFilter{
		Keyword:    f.Keyword,
		Category:   f.Category,
		SourceKind: f.SourceKind,
		Region:     f.Region,
		Since:      f.Since(now),
		Companies:  f.Companies,
	}
}

// FallbackFilter is the degenerate filter used when translation fails: the
// raw query as the sole keyword, everything else unset.
func FallbackFilter(query string) FilterSpec {
	return FilterSpec{Keyword: query}
}

// Translator converts free-text queries into filter specs.
type Translator struct {
	generator Generator
}

func NewTranslator(generator Generator) *Translator {
	return &Translator{generator: generator}
}

// Translate never fails: any generation or decode problem degrades to the
// raw-keyword fallback so search keeps working.
func (t *Translator) Translate(ctx context.Context, query string) FilterSpec {
	prompt := t.buildPrompt(query)

	raw, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		slog.Warn("Query translation failed, using fallback filter", "error", err)
		return FallbackFilter(query)
	}

	var spec FilterSpec
	if err := decode(raw, &spec); err != nil {
		slog.Warn("Query translation returned malformed output, using fallback filter", "error", err)
		return FallbackFilter(query)
	}

	switch spec.DateRange {
	case "", RangeToday, RangeWeek, RangeMonth:
	default:
		spec.DateRange = ""
	}

	return spec
}

func (t *Translator) buildPrompt(query string) string {
	return fmt.Sprintf(`Extract structured search filters from this natural-language query.

Query: %q

Respond with a single JSON object in exactly this format:
{
  "keyword": "main search term, or null",
  "category": one of %s or null,
  "source_type": "rss" or "youtube" or null,
  "region": "region or audience tag, or null",
  "date_range": "today" or "week" or "month" or null,
  "companies": ["company names mentioned in the query"],
  "interpreted": "one sentence restating the interpreted intent"
}

Use null for anything the query does not constrain. Return the JSON object only.`,
		query, quotedList(Categories))
}
