package transcript

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches YouTube video captions from the public timedtext endpoint.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	languages []string
}

// NewClient creates a transcript client. baseURL should be something like
// "https://www.youtube.com/api/timedtext". If empty, it defaults to that
// endpoint. languages is the preference order, e.g. ["en", "ja"].
func NewClient(baseURL string, userAgent string, languages []string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://www.youtube.com/api/timedtext"
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: userAgent,
		languages: languages,
	}
}

type captionTrack struct {
	XMLName xml.Name      `xml:"transcript"`
	Texts   []captionText `xml:"text"`
}

type captionText struct {
	Content string `xml:",chardata"`
}

// Fetch returns the transcript for a video id, trying languages in
// preference order and joining caption fragments with single spaces.
func (c *Client) Fetch(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("video id is empty")
	}

	var lastErr error
	for _, lang := range c.languages {
		text, err := c.fetchLanguage(ctx, videoID, lang)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("no captions in language %q", lang)
	}

	return "", fmt.Errorf("no transcript for video %s: %w", videoID, lastErr)
}

func (c *Client) fetchLanguage(ctx context.Context, videoID, lang string) (string, error) {
	endpoint := fmt.Sprintf("%s?v=%s&lang=%s",
		c.baseURL, url.QueryEscape(videoID), url.QueryEscape(lang))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	// An empty document means the video has no captions in this language.
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", nil
	}

	var track captionTrack
	if err := xml.Unmarshal(data, &track); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %w", err)
	}

	fragments := make([]string, 0, len(track.Texts))
	for _, t := range track.Texts {
		// Caption payloads carry doubly escaped entities.
		content := strings.TrimSpace(html.UnescapeString(t.Content))
		if content != "" {
			fragments = append(fragments, content)
		}
	}

	return strings.Join(fragments, " "), nil
}
