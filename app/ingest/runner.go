package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowhub/knowhub/app/ai"
	"github.com/knowhub/knowhub/app/database"
	"github.com/knowhub/knowhub/app/feed"
)

// FailPolicy decides what happens to an item whose classification failed.
type FailPolicy string

const (
	// FailPolicySkip drops the item entirely.
	FailPolicySkip FailPolicy = "skip"
	// FailPolicyDefault persists the item with placeholder classification.
	FailPolicyDefault FailPolicy = "default"
)

// TranscriptClient fetches a caption transcript for a YouTube video id.
type TranscriptClient interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Options bound the cost of one ingestion run.
type Options struct {
	PerSourceLimit int        // accepted items per source per run
	TextBudget     int        // rune budget for classifier input
	MinScore       int        // reject classified items below this total (0 disables)
	FailPolicy     FailPolicy // what to do when classification fails
}

// Runner executes one ingestion pass: sources one at a time, items within a
// source one at a time. A failure in one source is logged and contained.
type Runner struct {
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository
	fetcher     *feed.Fetcher
	extractor   *feed.Extractor
	transcripts TranscriptClient
	classifier  *ai.Classifier
	opts        Options
}

func NewRunner(sourceRepo database.SourceRepository, articleRepo database.ArticleRepository,
	fetcher *feed.Fetcher, extractor *feed.Extractor, transcripts TranscriptClient,
	classifier *ai.Classifier, opts Options) *Runner {
	if opts.PerSourceLimit <= 0 {
		opts.PerSourceLimit = 3
	}
	if opts.FailPolicy == "" {
		opts.FailPolicy = FailPolicySkip
	}
	return &Runner{
		sourceRepo:  sourceRepo,
		articleRepo: articleRepo,
		fetcher:     fetcher,
		extractor:   extractor,
		transcripts: transcripts,
		classifier:  classifier,
		opts:        opts,
	}
}

// Run processes all enabled sources. It returns an error only for failures
// before any source is processed; per-source failures are logged and the run
// continues.
func (r *Runner) Run(ctx context.Context) error {
	if r.classifier == nil {
		return errors.New("classifier is not configured")
	}

	sources, err := r.sourceRepo.GetEnabled()
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	slog.Info("Ingestion run started", "sources", len(sources))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		accepted, err := r.processSource(ctx, source)
		if err != nil {
			slog.Error("Failed to process source", "source", source.Name,
				"origin", source.Origin, "error", err)
		} else {
			slog.Info("Source processed", "source", source.Name, "accepted", accepted)
		}

		// The fetch attempt is stamped regardless of outcome, committed
		// separately from item writes.
		if err := r.sourceRepo.UpdateLastFetched(source.ID, time.Now()); err != nil {
			slog.Error("Failed to update last fetched", "source", source.Name, "error", err)
		}
	}

	slog.Info("Ingestion run finished")
	return nil
}

func (r *Runner) processSource(ctx context.Context, source database.Source) (int, error) {
	items, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, item := range items {
		if accepted >= r.opts.PerSourceLimit {
			slog.Debug("Per-source limit reached, skipping remaining items",
				"source", source.Name, "limit", r.opts.PerSourceLimit)
			break
		}

		ok, err := r.processItem(ctx, source, item)
		if err != nil {
			slog.Warn("Skipping item", "source", source.Name, "title", item.Title, "error", err)
			continue
		}
		if ok {
			accepted++
		}
	}

	return accepted, nil
}

// processItem runs one item through dedup, extraction, classification, and
// persistence. It returns true when a row was written.
func (r *Runner) processItem(ctx context.Context, source database.Source, item feed.Item) (bool, error) {
	// Dedup before the paid classification call.
	exists, err := r.articleRepo.ExistsByURL(item.URL)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	if exists {
		slog.Debug("Duplicate URL, skipping", "url", item.URL)
		return false, nil
	}

	text, videoTranscript := r.extractText(ctx, source, item)
	text = feed.Truncate(text, r.opts.TextBudget)

	classification, err := r.classifier.Classify(ctx, item.Title, text, source.Kind)
	if err != nil {
		if r.opts.FailPolicy == FailPolicyDefault {
			slog.Warn("Classification failed, persisting with defaults",
				"title", item.Title, "error", err)
			classification = ai.DefaultClassification()
		} else {
			return false, fmt.Errorf("classification failed: %w", err)
		}
	}

	score := classification.Score()
	if r.opts.MinScore > 0 && score < r.opts.MinScore {
		slog.Debug("Score below threshold, skipping",
			"title", item.Title, "score", score, "min", r.opts.MinScore)
		return false, nil
	}

	now := time.Now()
	published := item.PublishedAt
	article := database.Article{
		Title:         item.Title,
		Summary:       item.Summary,
		SummaryLocal:  classification.SummaryLocal,
		BusinessPoint: classification.BusinessPoint,
		FullText:      text,
		Transcript:    videoTranscript,
		URL:           item.URL,
		SourceName:    source.Name,
		SourceKind:    source.Kind,
		SourceID:      &source.ID,
		Category:      classification.Category,
		Tags:          classification.Tags,
		CompanyTags:   classification.CompanyTags,
		Priority:      classification.PriorityLabel,
		TrustLevel:    classification.TrustLevel,
		TrustReason:   classification.TrustReason,
		Score:         score,
		ScoreDetails:  classification.ScoreDetails,
		PublishedAt:   &published,
		FetchedAt:     &now,
	}

	// Each insert commits on its own: a crash mid-run loses at most the
	// in-flight item. A URL race with a concurrent run lands here as a
	// silent no-op.
	id, inserted, err := r.articleRepo.Insert(article)
	if err != nil {
		return false, fmt.Errorf("failed to persist article: %w", err)
	}
	if !inserted {
		slog.Debug("Duplicate URL at insert, skipping", "url", item.URL)
		return false, nil
	}

	slog.Info("Article added", "id", id, "title", article.Title, "score", article.Score)
	return true, nil
}

// extractText picks the text to classify: for YouTube, the transcript when
// one exists, otherwise the stripped summary; for RSS, the stripped summary,
// or the readable article page when the feed entry carries no summary.
func (r *Runner) extractText(ctx context.Context, source database.Source, item feed.Item) (text, videoTranscript string) {
	if source.Kind == database.SourceKindYouTube {
		if videoID := feed.VideoID(item.URL); videoID != "" && r.transcripts != nil {
			t, err := r.transcripts.Fetch(ctx, videoID)
			if err != nil {
				slog.Debug("Transcript unavailable", "video", videoID, "error", err)
			} else {
				videoTranscript = t
			}
		}
		if videoTranscript != "" {
			return videoTranscript, videoTranscript
		}
		return r.extractor.Text(item.Summary), ""
	}

	text = r.extractor.Text(item.Summary)
	if text == "" {
		text = r.extractor.ReadablePage(ctx, item.URL)
	}
	return text, ""
}
