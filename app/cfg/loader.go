package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./knowhub.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	SourcesFile  string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yaml" description:"YAML file with seed sources"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	FeedToken    string `long:"feed-token" env:"FEED_TOKEN" description:"Token guarding the curated digest feed (optional)"`

	// External model configuration
	OpenAIAPIKey  string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"API key for the text-generation service (required for classification and AI search)"`
	OpenAIModel   string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Model name for the text-generation service"`
	OpenAIBaseURL string `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"Base URL override for OpenAI-compatible endpoints (optional)"`

	// Ingestion configuration
	PerSourceLimit     int    `long:"per-source-limit" env:"PER_SOURCE_LIMIT" default:"3" description:"Maximum accepted items per source per ingestion run"`
	FeedItemLimit      int    `long:"feed-item-limit" env:"FEED_ITEM_LIMIT" default:"5" description:"Maximum feed entries considered per source"`
	TextBudget         int    `long:"text-budget" env:"TEXT_BUDGET" default:"4000" description:"Character budget for text sent to the classifier"`
	MinScore           int    `long:"min-score" env:"MIN_SCORE" default:"0" description:"Reject classified items below this total score (0 disables)"`
	ClassifyFailPolicy string `long:"classify-fail-policy" env:"CLASSIFY_FAIL_POLICY" default:"skip" choice:"skip" choice:"default" description:"What to do when classification fails: skip the item or persist with default fields"`
	IngestInterval     int    `long:"ingest-interval" env:"INGEST_INTERVAL" default:"0" description:"Ingestion interval in seconds (0 disables scheduled runs)"`
	TranscriptLangs    string `long:"transcript-langs" env:"TRANSCRIPT_LANGS" default:"en,ja" description:"Preferred transcript languages, comma separated"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"KnowHub/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Tokyo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		Port:               raw.Port,
		SourcesFile:        raw.SourcesFile,
		APIAccessKey:       raw.APIAccessKey,
		FeedToken:          raw.FeedToken,
		OpenAIAPIKey:       raw.OpenAIAPIKey,
		OpenAIModel:        raw.OpenAIModel,
		OpenAIBaseURL:      raw.OpenAIBaseURL,
		PerSourceLimit:     raw.PerSourceLimit,
		FeedItemLimit:      raw.FeedItemLimit,
		TextBudget:         raw.TextBudget,
		MinScore:           raw.MinScore,
		ClassifyFailPolicy: raw.ClassifyFailPolicy,
		IngestInterval:     raw.IngestInterval,
		TranscriptLangs:    splitLangs(raw.TranscriptLangs),
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func splitLangs(s string) []string {
	var langs []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			langs = append(langs, p)
		}
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return langs
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
