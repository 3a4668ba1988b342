package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knowhub/knowhub/app/ai"
	"github.com/knowhub/knowhub/app/database"
	"github.com/knowhub/knowhub/app/feed"
)

const classificationJSON = `{
	"category": "LLM",
	"tags": ["models", "inference"],
	"company_tags": ["OpenAI"],
	"priority_label": "HIGH",
	"trust_level": "HIGH",
	"trust_reason": "Official announcement.",
	"summary_local": "要約",
	"business_point": "Impact.",
	"score_details": {"relevance": 35, "reliability": 25, "freshness": 15, "virality": 5}
}`

type scriptedGenerator struct {
	response string
	err      error
	calls    int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func serveFeed(t *testing.T, itemCount int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items strings.Builder
		for i := 0; i < itemCount; i++ {
			fmt.Fprintf(&items, `<item>
				<title>Item %d</title>
				<link>%s/articles/%d</link>
				<description>Summary of item %d</description>
				<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
			</item>`, i, "http://example.com", i, i)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel>
			<title>Test Feed</title><link>http://example.com</link>
			%s</channel></rss>`, items.String())
	}))
	t.Cleanup(server.Close)
	return server
}

type testEnv struct {
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository
	sourceID    int64
}

func newTestEnv(t *testing.T, feedURL string) testEnv {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	sourceRepo := database.NewSourceRepository(db)
	id, err := sourceRepo.Create(database.Source{
		Kind:     database.SourceKindRSS,
		Origin:   feedURL,
		Name:     "Test Feed",
		Category: "LLM",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	return testEnv{
		sourceRepo:  sourceRepo,
		articleRepo: database.NewArticleRepository(db),
		sourceID:    id,
	}
}

func newTestRunner(env testEnv, generator ai.Generator, opts Options) *Runner {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	fetcher := feed.NewFetcher(httpClient, "test-agent", 10)
	extractor := feed.NewExtractor(httpClient, "test-agent")
	policy := ai.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, Retryable: ai.IsRateLimit}
	classifier := ai.NewClassifier(generator, policy, "English")
	return NewRunner(env.sourceRepo, env.articleRepo, fetcher, extractor, nil, classifier, opts)
}

func TestRun_PersistsClassifiedItems(t *testing.T) {
	server := serveFeed(t, 2)
	env := newTestEnv(t, server.URL)
	runner := newTestRunner(env, &scriptedGenerator{response: classificationJSON}, Options{PerSourceLimit: 3})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	count, err := env.articleRepo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 articles, got %d", count)
	}

	articles, err := env.articleRepo.List(database.ListOpts{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if articles[0].Score != 80 {
		t.Errorf("Expected score 80, got %d", articles[0].Score)
	}
	if articles[0].Category != "LLM" {
		t.Errorf("Expected category LLM, got %s", articles[0].Category)
	}
}

func TestRun_PerSourceLimit(t *testing.T) {
	server := serveFeed(t, 5)
	env := newTestEnv(t, server.URL)
	runner := newTestRunner(env, &scriptedGenerator{response: classificationJSON}, Options{PerSourceLimit: 2})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	count, err := env.articleRepo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected per-source cap of 2 articles, got %d", count)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	server := serveFeed(t, 2)
	env := newTestEnv(t, server.URL)
	generator := &scriptedGenerator{response: classificationJSON}
	runner := newTestRunner(env, generator, Options{PerSourceLimit: 3})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := generator.calls

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	count, err := env.articleRepo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 articles after re-run, got %d", count)
	}
	if generator.calls != callsAfterFirst {
		t.Errorf("Expected no classifier calls for duplicates, got %d extra",
			generator.calls-callsAfterFirst)
	}
}

func TestRun_ClassificationFailureSkipsItem(t *testing.T) {
	server := serveFeed(t, 2)
	env := newTestEnv(t, server.URL)
	generator := &scriptedGenerator{err: errors.New("model unavailable")}
	runner := newTestRunner(env, generator, Options{PerSourceLimit: 3, FailPolicy: FailPolicySkip})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run should contain classification failures: %v", err)
	}

	count, err := env.articleRepo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no articles under skip policy, got %d", count)
	}
	// Every item gets its own attempt despite earlier failures.
	if generator.calls != 2 {
		t.Errorf("Expected 2 classification attempts, got %d", generator.calls)
	}
}

func TestRun_DefaultPolicyPersistsPlaceholder(t *testing.T) {
	server := serveFeed(t, 1)
	env := newTestEnv(t, server.URL)
	generator := &scriptedGenerator{err: errors.New("model unavailable")}
	runner := newTestRunner(env, generator, Options{PerSourceLimit: 3, FailPolicy: FailPolicyDefault})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	articles, err := env.articleRepo.List(database.ListOpts{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected 1 placeholder article, got %d", len(articles))
	}
	if articles[0].Category != "General" {
		t.Errorf("Expected default category General, got %s", articles[0].Category)
	}
	if articles[0].Score != ai.DefaultClassification().Score() {
		t.Errorf("Expected default score, got %d", articles[0].Score)
	}
}

func TestRun_MinScoreThreshold(t *testing.T) {
	server := serveFeed(t, 2)
	env := newTestEnv(t, server.URL)
	low := `{
		"category": "General",
		"tags": ["misc"],
		"company_tags": [],
		"priority_label": "LOW",
		"trust_level": "LOW",
		"trust_reason": "Unverified.",
		"summary_local": "要約",
		"business_point": "None.",
		"score_details": {"relevance": 5, "reliability": 5, "freshness": 5, "virality": 0}
	}`
	runner := newTestRunner(env, &scriptedGenerator{response: low}, Options{PerSourceLimit: 3, MinScore: 50})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	count, err := env.articleRepo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected items below minimum score to be dropped, got %d", count)
	}
}

func TestRun_StampsLastFetched(t *testing.T) {
	server := serveFeed(t, 1)
	env := newTestEnv(t, server.URL)
	runner := newTestRunner(env, &scriptedGenerator{response: classificationJSON}, Options{})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	source, err := env.sourceRepo.GetByID(env.sourceID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if source.LastFetchedAt == nil {
		t.Error("Expected last fetched timestamp after a run")
	}
}

func TestRun_StampsLastFetchedOnFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	env := newTestEnv(t, server.URL)
	runner := newTestRunner(env, &scriptedGenerator{response: classificationJSON}, Options{})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run should contain per-source failures: %v", err)
	}

	source, err := env.sourceRepo.GetByID(env.sourceID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if source.LastFetchedAt == nil {
		t.Error("Expected last fetched timestamp even when the fetch failed")
	}
}

func TestRun_MissingClassifier(t *testing.T) {
	server := serveFeed(t, 1)
	env := newTestEnv(t, server.URL)
	httpClient := &http.Client{Timeout: 5 * time.Second}
	fetcher := feed.NewFetcher(httpClient, "test-agent", 10)
	extractor := feed.NewExtractor(httpClient, "test-agent")
	runner := NewRunner(env.sourceRepo, env.articleRepo, fetcher, extractor, nil, nil, Options{})

	if err := runner.Run(context.Background()); err == nil {
		t.Error("Expected error when no classifier is configured")
	}
}
