package database

import (
	"time"
)

// Source kinds
const (
	SourceKindRSS     = "rss"
	SourceKindYouTube = "youtube"
)

// Source is a configured feed: an RSS URL or a YouTube channel id.
type Source struct {
	ID            int64
	Kind          string // rss, youtube
	Origin        string // feed URL or channel id
	Name          string
	Category      string
	Enabled       bool
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

// ScoreDetails holds the four bounded sub-scores assigned by the classifier.
// Stored as a single JSON column on the article row.
type ScoreDetails struct {
	Relevance   int `json:"relevance"`
	Reliability int `json:"reliability"`
	Freshness   int `json:"freshness"`
	Virality    int `json:"virality"`
}

// Total returns the aggregate article score.
func (s ScoreDetails) Total() int {
	return s.Relevance + s.Reliability + s.Freshness + s.Virality
}

// Article is a persisted, classified feed item. URL is the dedup key.
type Article struct {
	ID            int64
	Title         string
	Summary       string
	SummaryLocal  string
	BusinessPoint string
	FullText      string
	Transcript    string
	URL           string
	SourceName    string
	SourceKind    string
	SourceID      *int64
	Category      string
	Tags          []string
	CompanyTags   []string
	Priority      string
	TrustLevel    string
	TrustReason   string
	Score         int
	ScoreDetails  ScoreDetails
	Audience      string
	Region        string
	PublishedAt   *time.Time
	FetchedAt     *time.Time
	IsClipped     bool
	ClipFolder    string
}
