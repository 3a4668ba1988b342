package feed

import "time"

// Item is a normalized feed entry. It exists only within one ingestion pass:
// it either becomes a stored article or is discarded.
type Item struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
}
