package api

import (
	"time"

	"github.com/knowhub/knowhub/app/database"
	"github.com/knowhub/knowhub/app/search"
	"github.com/knowhub/knowhub/app/tasks"
)

type Handler struct {
	articleRepo database.ArticleRepository
	sourceRepo  database.SourceRepository
	searchSvc   *search.Service
	scheduler   tasks.SchedulerInterface
	feedToken   string
}

type articleResponse struct {
	ID            int64                 `json:"id"`
	Title         string                `json:"title"`
	Summary       string                `json:"summary"`
	SummaryLocal  string                `json:"summary_local"`
	BusinessPoint string                `json:"business_point"`
	URL           string                `json:"url"`
	SourceName    string                `json:"source_name"`
	SourceKind    string                `json:"source_type"`
	Category      string                `json:"category"`
	Tags          []string              `json:"tags"`
	CompanyTags   []string              `json:"company_tags"`
	Priority      string                `json:"priority_label"`
	TrustLevel    string                `json:"trust_level"`
	TrustReason   string                `json:"trust_reason"`
	Score         int                   `json:"score"`
	ScoreDetails  database.ScoreDetails `json:"score_details"`
	Region        string                `json:"region,omitempty"`
	PublishedAt   *time.Time            `json:"published_at"`
	FetchedAt     *time.Time            `json:"fetched_at"`
	IsClipped     bool                  `json:"is_clipped"`
	ClipFolder    string                `json:"clip_folder,omitempty"`
}

type articleDetailResponse struct {
	articleResponse
	FullText   string `json:"full_text"`
	Transcript string `json:"transcript"`
}

type rankedArticleResponse struct {
	articleResponse
	RelevanceNote string `json:"relevance_note"`
	AIRankScore   int    `json:"ai_rank_score"`
}

type sourceResponse struct {
	ID            int64      `json:"id"`
	Kind          string     `json:"type"`
	Origin        string     `json:"url"`
	Name          string     `json:"display_name"`
	Category      string     `json:"category"`
	Enabled       bool       `json:"enabled"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
}

type createSourceRequest struct {
	URL      string `json:"url" binding:"required"`
	Kind     string `json:"source_type"`
	Name     string `json:"display_name"`
	Category string `json:"category"`
}

type updateSourceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type clipRequest struct {
	Folder string `json:"folder"`
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

type searchResponse struct {
	ParsedQuery searchFilters           `json:"parsed_query"`
	Results     []rankedArticleResponse `json:"results"`
}

type searchFilters struct {
	Keyword     string   `json:"keyword,omitempty"`
	Category    string   `json:"category,omitempty"`
	SourceKind  string   `json:"source_type,omitempty"`
	Region      string   `json:"region,omitempty"`
	DateRange   string   `json:"date_range,omitempty"`
	Companies   []string `json:"companies,omitempty"`
	Interpreted string   `json:"interpreted,omitempty"`
}

func newArticleResponse(a database.Article) articleResponse {
	return articleResponse{
		ID:            a.ID,
		Title:         a.Title,
		Summary:       a.Summary,
		SummaryLocal:  a.SummaryLocal,
		BusinessPoint: a.BusinessPoint,
		URL:           a.URL,
		SourceName:    a.SourceName,
		SourceKind:    a.SourceKind,
		Category:      a.Category,
		Tags:          a.Tags,
		CompanyTags:   a.CompanyTags,
		Priority:      a.Priority,
		TrustLevel:    a.TrustLevel,
		TrustReason:   a.TrustReason,
		Score:         a.Score,
		ScoreDetails:  a.ScoreDetails,
		Region:        a.Region,
		PublishedAt:   a.PublishedAt,
		FetchedAt:     a.FetchedAt,
		IsClipped:     a.IsClipped,
		ClipFolder:    a.ClipFolder,
	}
}

func newSourceResponse(s database.Source) sourceResponse {
	return sourceResponse{
		ID:            s.ID,
		Kind:          s.Kind,
		Origin:        s.Origin,
		Name:          s.Name,
		Category:      s.Category,
		Enabled:       s.Enabled,
		LastFetchedAt: s.LastFetchedAt,
	}
}
