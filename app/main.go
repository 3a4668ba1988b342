package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knowhub/knowhub/app/ai"
	"github.com/knowhub/knowhub/app/api"
	"github.com/knowhub/knowhub/app/cfg"
	"github.com/knowhub/knowhub/app/config"
	"github.com/knowhub/knowhub/app/database"
	"github.com/knowhub/knowhub/app/feed"
	"github.com/knowhub/knowhub/app/ingest"
	"github.com/knowhub/knowhub/app/search"
	"github.com/knowhub/knowhub/app/tasks"
	"github.com/knowhub/knowhub/app/transcript"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting KnowHub server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	articleRepo := database.NewArticleRepository(db)

	seedSources(appCfg.SourcesFile, sourceRepo)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FeedItemLimit)
	extractor := feed.NewExtractor(httpClient, appCfg.UserAgent)
	transcripts := transcript.NewClient("", appCfg.UserAgent, appCfg.TranscriptLangs)

	var classifier *ai.Classifier
	var searchSvc *search.Service
	if appCfg.OpenAIAPIKey != "" {
		generator, err := ai.NewOpenAI(ai.Config{
			APIKey:  appCfg.OpenAIAPIKey,
			Model:   appCfg.OpenAIModel,
			BaseURL: appCfg.OpenAIBaseURL,
		})
		if err != nil {
			log.Fatal("Failed to create AI client:", err)
		}
		classifier = ai.NewClassifier(generator, ai.DefaultRetryPolicy(), "")
		searchSvc = search.NewService(articleRepo, ai.NewTranslator(generator), ai.NewRanker(generator))
	} else {
		slog.Warn("OPENAI_API_KEY not set: ingestion and AI search are disabled")
	}

	runner := ingest.NewRunner(sourceRepo, articleRepo, fetcher, extractor, transcripts,
		classifier, ingest.Options{
			PerSourceLimit: appCfg.PerSourceLimit,
			TextBudget:     appCfg.TextBudget,
			MinScore:       appCfg.MinScore,
			FailPolicy:     ingest.FailPolicy(appCfg.ClassifyFailPolicy),
		})

	scheduler := tasks.NewScheduler(runner, time.Duration(appCfg.IngestInterval)*time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(articleRepo, sourceRepo, searchSvc, scheduler, appCfg.FeedToken)
	server := &http.Server{
		Addr:    ":" + appCfg.Port,
		Handler: api.NewServer(handler, appCfg.APIAccessKey),
	}

	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}

// seedSources registers the sources file entries, updating name and category
// for origins that already exist.
func seedSources(path string, repo database.SourceRepository) {
	seeds, err := config.NewLoader(path).Load()
	if err != nil {
		log.Fatal("Failed to load sources file:", err)
	}

	for _, seed := range seeds {
		id, err := repo.Upsert(database.Source{
			Kind:     seed.Kind,
			Origin:   seed.Origin,
			Name:     seed.Name,
			Category: seed.Category,
			Enabled:  seed.IsEnabled(),
		})
		if err != nil {
			slog.Warn("Failed to register source", "origin", seed.Origin, "error", err)
			continue
		}
		slog.Info("Registered source", "id", id, "type", seed.Kind, "origin", seed.Origin)
	}
}
