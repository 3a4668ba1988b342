package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/knowhub/knowhub/app/ai"
	"github.com/knowhub/knowhub/app/database"
)

// CandidateLimit bounds the list sent to the re-ranking call.
const CandidateLimit = 20

// FallbackNote annotates results when the re-ranking call failed.
const FallbackNote = "AI ranking failed"

// RankedArticle is a stored article annotated with the AI relevance verdict.
type RankedArticle struct {
	database.Article
	RelevanceNote string
	AIRankScore   int
}

// Result is what a search returns: the interpreted filters plus the
// annotated result list. It is always structurally complete; only a database
// failure surfaces as an error.
type Result struct {
	Filters ai.FilterSpec
	Results []RankedArticle
}

// Service runs AI-assisted search: query translation, a filtered database
// query, and an optional AI re-rank of the candidates.
type Service struct {
	articleRepo database.ArticleRepository
	translator  *ai.Translator
	ranker      *ai.Ranker
}

func NewService(articleRepo database.ArticleRepository, translator *ai.Translator, ranker *ai.Ranker) *Service {
	return &Service{
		articleRepo: articleRepo,
		translator:  translator,
		ranker:      ranker,
	}
}

// Search translates the query (falling back to a raw-keyword filter), runs
// the database query, and re-ranks the candidates. Translation and ranking
// failures degrade, never propagate.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	filters := s.translator.Translate(ctx, query)

	candidates, err := s.articleRepo.Search(filters.ToSearch(time.Now()), CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	if len(candidates) == 0 {
		return &Result{Filters: filters, Results: []RankedArticle{}}, nil
	}

	return &Result{
		Filters: filters,
		Results: s.rank(ctx, query, candidates),
	}, nil
}

func (s *Service) rank(ctx context.Context, query string, candidates []database.Article) []RankedArticle {
	projected := make([]ai.Candidate, len(candidates))
	for i, a := range candidates {
		projected[i] = ai.NewCandidate(a)
	}

	ranked, err := s.ranker.Rank(ctx, query, projected)
	if err != nil {
		slog.Warn("Re-ranking failed, keeping original order", "error", err)
		return fallbackResults(candidates)
	}

	results := make([]RankedArticle, 0, len(ranked))
	for _, r := range ranked {
		article, err := s.articleRepo.GetByID(r.ID)
		if err != nil {
			slog.Warn("Failed to re-fetch ranked article", "id", r.ID, "error", err)
			continue
		}
		if article == nil {
			// The model may hallucinate ids; drop them.
			slog.Debug("Ranked id not found, dropping", "id", r.ID)
			continue
		}
		results = append(results, RankedArticle{
			Article:       *article,
			RelevanceNote: r.RelevanceNote,
			AIRankScore:   r.RankScore,
		})
	}

	if len(results) == 0 {
		return fallbackResults(candidates)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AIRankScore > results[j].AIRankScore
	})
	return results
}

// fallbackResults annotates the original candidates with the sentinel note
// and their stored score as the rank score, preserving the original order.
func fallbackResults(candidates []database.Article) []RankedArticle {
	results := make([]RankedArticle, len(candidates))
	for i, a := range candidates {
		results[i] = RankedArticle{
			Article:       a,
			RelevanceNote: FallbackNote,
			AIRankScore:   a.Score,
		}
	}
	return results
}
