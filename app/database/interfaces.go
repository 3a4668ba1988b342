package database

import (
	"time"
)

// ListOpts are the filter knobs for the article listing endpoint.
type ListOpts struct {
	Category   string
	Priority   string
	SourceKind string
	Days       int
	MinScore   int
	Search     string
	Clipped    bool
	Limit      int
}

// SearchFilter is the structured query produced by the AI query translator.
type SearchFilter struct {
	Keyword    string
	Category   string
	SourceKind string
	Region     string
	Since      *time.Time
	Companies  []string
}

type SourceRepository interface {
	List() ([]Source, error)
	GetByID(id int64) (*Source, error)
	GetEnabled() ([]Source, error)
	Create(source Source) (int64, error)
	Upsert(source Source) (int64, error)
	SetEnabled(id int64, enabled bool) error
	Delete(id int64) error
	UpdateLastFetched(id int64, at time.Time) error
}

type ArticleRepository interface {
	ExistsByURL(url string) (bool, error)
	Insert(article Article) (int64, bool, error)
	GetByID(id int64) (*Article, error)
	List(opts ListOpts) ([]Article, error)
	Search(filter SearchFilter, limit int) ([]Article, error)
	SetClip(id int64, clipped bool, folder string) error
	CuratedSince(minScore int, since time.Time) ([]Article, error)
	Count() (int, error)
}
