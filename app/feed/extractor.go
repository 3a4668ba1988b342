package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extractor turns HTML snippets and article pages into plain text suitable
// for classification.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewExtractor(httpClient *http.Client, userAgent string) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Text strips HTML markup from a feed summary and collapses whitespace.
// Plain-text input passes through unchanged apart from whitespace cleanup.
func (e *Extractor) Text(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}
	doc.Find("script, style").Remove()
	return collapseWhitespace(doc.Text())
}

// ReadablePage fetches the article page and extracts its readable text.
// Any failure yields "": page extraction is best-effort enrichment.
func (e *Extractor) ReadablePage(ctx context.Context, pageURL string) string {
	data, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		slog.Debug("Failed to fetch article page", "url", pageURL, "error", err)
		return ""
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), parsedURL)
	if err != nil {
		slog.Debug("Failed to extract readable content", "url", pageURL, "error", err)
		return ""
	}

	return collapseWhitespace(article.TextContent)
}

func (e *Extractor) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Truncate caps text at the given rune budget so prompt cost stays bounded.
func Truncate(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
