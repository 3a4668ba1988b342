package api

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/app/database"
)

// Curated digest feed selection: high-scoring articles from the last 60 days.
const (
	digestMinScore = 55
	digestWindow   = 60 * 24 * time.Hour
)

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.articleRepo.Count(); err == nil {
		health["articles"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListArticles(c *gin.Context) {
	opts := database.ListOpts{
		Category:   c.Query("category"),
		Priority:   c.Query("priority"),
		SourceKind: c.Query("source_type"),
		Search:     c.Query("search"),
		Days:       intQuery(c, "days", 7),
		MinScore:   intQuery(c, "min_score", 0),
		Clipped:    c.Query("clipped") == "true",
	}

	articles, err := h.articleRepo.List(opts)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list articles"})
		return
	}

	resp := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		resp = append(resp, newArticleResponse(a))
	}

	c.JSON(http.StatusOK, gin.H{"articles": resp, "total": len(resp)})
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	article, err := h.articleRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get article"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, articleDetailResponse{
		articleResponse: newArticleResponse(*article),
		FullText:        article.FullText,
		Transcript:      article.Transcript,
	})
}

func (h *Handler) ClipArticle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req clipRequest
	_ = c.ShouldBindJSON(&req)
	folder := req.Folder
	if folder == "" {
		folder = "default"
	}

	if err := h.setClip(c, id, true, folder); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) UnclipArticle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.setClip(c, id, false, ""); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) setClip(c *gin.Context, id int64, clipped bool, folder string) error {
	err := h.articleRepo.SetClip(id, clipped, folder)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
	} else {
		slog.Error("Database error", "operation", "set_clip", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update clip state"})
	}
	return err
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.sourceRepo.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		resp = append(resp, newSourceResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sources": resp, "total": len(resp)})
}

func (h *Handler) CreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	kind, origin := resolveSource(req.Kind, req.URL)
	name := req.Name
	if name == "" {
		name = origin
	}

	id, err := h.sourceRepo.Create(database.Source{
		Kind:     kind,
		Origin:   origin,
		Name:     name,
		Category: req.Category,
		Enabled:  true,
	})
	if err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "type": kind, "url": origin})
}

func (h *Handler) UpdateSource(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	source, err := h.sourceRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get source"})
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if err := h.sourceRepo.SetEnabled(id, *req.Enabled); err != nil {
		slog.Error("Database error", "operation", "update_source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) DeleteSource(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.sourceRepo.Delete(id); err != nil {
		slog.Error("Database error", "operation", "delete_source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TriggerCollect fires a detached ingestion run and returns immediately.
func (h *Handler) TriggerCollect(c *gin.Context) {
	h.scheduler.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "collection started"})
}

func (h *Handler) SearchAI(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	if h.searchSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI search is not configured"})
		return
	}

	result, err := h.searchSvc.Search(c.Request.Context(), req.Query)
	if err != nil {
		slog.Error("Search failed", "query", req.Query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	results := make([]rankedArticleResponse, 0, len(result.Results))
	for _, r := range result.Results {
		results = append(results, rankedArticleResponse{
			articleResponse: newArticleResponse(r.Article),
			RelevanceNote:   r.RelevanceNote,
			AIRankScore:     r.AIRankScore,
		})
	}

	c.JSON(http.StatusOK, searchResponse{
		ParsedQuery: searchFilters{
			Keyword:     result.Filters.Keyword,
			Category:    result.Filters.Category,
			SourceKind:  result.Filters.SourceKind,
			Region:      result.Filters.Region,
			DateRange:   result.Filters.DateRange,
			Companies:   result.Filters.Companies,
			Interpreted: result.Filters.Interpreted,
		},
		Results: results,
	})
}

// GetDigestFeed serves the curated HTML digest guarded by the feed token.
func (h *Handler) GetDigestFeed(c *gin.Context) {
	token := c.Param("token")
	if h.feedToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.feedToken)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid feed token"})
		return
	}

	articles, err := h.articleRepo.CuratedSince(digestMinScore, time.Now().Add(-digestWindow))
	if err != nil {
		slog.Error("Database error", "operation", "digest_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n")
	b.WriteString("<title>KnowHub Curated Feed</title>\n</head>\n<body>\n")
	b.WriteString("<h1>KnowHub - Curated Feed</h1>\n")
	fmt.Fprintf(&b, "<p>Generated at: %s UTC</p>\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	for _, a := range articles {
		fmt.Fprintf(&b, "<div class=\"article\">\n<h2>%s</h2>\n", html.EscapeString(a.Title))
		published := ""
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "<p><strong>Source:</strong> %s | <strong>Date:</strong> %s | <strong>Score:</strong> %d</p>\n",
			html.EscapeString(a.SourceName), published, a.Score)
		fmt.Fprintf(&b, "<p><strong>Category:</strong> %s | <strong>Tags:</strong> %s</p>\n",
			html.EscapeString(a.Category), html.EscapeString(strings.Join(a.Tags, ", ")))
		fmt.Fprintf(&b, "<p><a href=\"%s\">%s</a></p>\n",
			html.EscapeString(a.URL), html.EscapeString(a.URL))
		fmt.Fprintf(&b, "<h3>Summary</h3>\n<p>%s</p>\n", html.EscapeString(a.SummaryLocal))
		text := a.FullText
		if text == "" {
			text = a.Transcript
		}
		fmt.Fprintf(&b, "<h3>Full Text</h3>\n<p>%s</p>\n</div>\n", html.EscapeString(text))
	}

	b.WriteString("</body>\n</html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// ExportClipped returns clipped articles as plain text, one block per
// article, for import into external research tools.
func (h *Handler) ExportClipped(c *gin.Context) {
	articles, err := h.articleRepo.List(database.ListOpts{Clipped: true, Limit: 500})
	if err != nil {
		slog.Error("Database error", "operation", "export", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export"})
		return
	}

	var b strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&b, "# %s\n", a.Title)
		fmt.Fprintf(&b, "URL: %s\nSource: %s\nCategory: %s\nScore: %d\n\n",
			a.URL, a.SourceName, a.Category, a.Score)
		if a.SummaryLocal != "" {
			fmt.Fprintf(&b, "%s\n\n", a.SummaryLocal)
		}
		if a.FullText != "" {
			fmt.Fprintf(&b, "%s\n\n", a.FullText)
		}
		b.WriteString("---\n\n")
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// resolveSource infers the source kind when the client omitted it and
// normalizes YouTube origins to a bare channel id where possible.
func resolveSource(kind, url string) (string, string) {
	origin := strings.TrimSpace(url)

	if idx := strings.Index(origin, "channel_id="); idx >= 0 {
		id := origin[idx+len("channel_id="):]
		if amp := strings.IndexAny(id, "&#"); amp >= 0 {
			id = id[:amp]
		}
		return database.SourceKindYouTube, id
	}

	if kind == database.SourceKindYouTube || kind == database.SourceKindRSS {
		return kind, origin
	}

	if strings.Contains(origin, "youtube.com/channel/") {
		parts := strings.Split(origin, "/channel/")
		id := parts[len(parts)-1]
		if slash := strings.IndexAny(id, "/?"); slash >= 0 {
			id = id[:slash]
		}
		return database.SourceKindYouTube, id
	}
	if strings.HasPrefix(origin, "UC") && !strings.Contains(origin, "/") {
		return database.SourceKindYouTube, origin
	}

	return database.SourceKindRSS, origin
}
