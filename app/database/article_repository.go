package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

// SQLite extended result codes for unique-constraint violations.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// ArticleRepositoryImpl handles database operations for articles
type ArticleRepositoryImpl struct {
	db *DB
}

var _ ArticleRepository = (*ArticleRepositoryImpl)(nil)

func NewArticleRepository(db *DB) *ArticleRepositoryImpl {
	return &ArticleRepositoryImpl{db: db}
}

const articleColumns = `id, title, summary, summary_local, business_point, full_text,
	transcript, url, source_name, source_kind, source_id, category, tags,
	company_tags, priority, trust_level, trust_reason, score, score_details,
	audience, region, published_at, fetched_at, is_clipped, clip_folder`

// ExistsByURL reports whether an article with the given URL is already stored.
// URL is the global dedup key.
func (r *ArticleRepositoryImpl) ExistsByURL(url string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM articles WHERE url = ? LIMIT 1`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article url: %w", err)
	}
	return true, nil
}

// Insert stores an article. A duplicate URL is not an error: the insert is a
// no-op and inserted is false.
func (r *ArticleRepositoryImpl) Insert(a Article) (int64, bool, error) {
	tags, err := json.Marshal(emptyIfNil(a.Tags))
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode tags: %w", err)
	}
	companyTags, err := json.Marshal(emptyIfNil(a.CompanyTags))
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode company tags: %w", err)
	}
	scoreDetails, err := json.Marshal(a.ScoreDetails)
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode score details: %w", err)
	}

	res, err := r.db.Exec(`
		INSERT INTO articles (
			title, summary, summary_local, business_point, full_text,
			transcript, url, source_name, source_kind, source_id, category,
			tags, company_tags, priority, trust_level, trust_reason, score,
			score_details, audience, region, published_at, fetched_at,
			is_clipped, clip_folder
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Title, a.Summary, a.SummaryLocal, a.BusinessPoint, a.FullText,
		a.Transcript, a.URL, a.SourceName, a.SourceKind, a.SourceID, a.Category,
		string(tags), string(companyTags), a.Priority, a.TrustLevel, a.TrustReason,
		a.Score, string(scoreDetails), a.Audience, a.Region,
		nullableTime(a.PublishedAt), nullableTime(a.FetchedAt),
		a.IsClipped, a.ClipFolder)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get article id: %w", err)
	}
	return id, true, nil
}

func (r *ArticleRepositoryImpl) GetByID(id int64) (*Article, error) {
	row := r.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// List returns articles matching the listing filters, highest score first.
func (r *ArticleRepositoryImpl) List(opts ListOpts) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE 1=1`
	var args []interface{}

	if opts.Category != "" {
		query += ` AND category = ?`
		args = append(args, opts.Category)
	}
	if opts.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, opts.Priority)
	}
	if opts.SourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, opts.SourceKind)
	}
	if opts.Days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -opts.Days)
		query += ` AND published_at >= ?`
		args = append(args, cutoff)
	}
	if opts.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, opts.MinScore)
	}
	if opts.Search != "" {
		query += ` AND (title LIKE ? COLLATE NOCASE OR summary_local LIKE ? COLLATE NOCASE)`
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}
	if opts.Clipped {
		query += ` AND is_clipped = 1`
	}

	query += ` ORDER BY score DESC`
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// Search returns articles matching an AI-translated filter, highest score
// first. The keyword matches title, localized summary, full text, and
// transcript; company tags are matched against the JSON tag column.
func (r *ArticleRepositoryImpl) Search(filter SearchFilter, limit int) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE 1=1`
	var args []interface{}

	if filter.SourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, filter.SourceKind)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Region != "" {
		query += ` AND region = ?`
		args = append(args, filter.Region)
	}
	if filter.Since != nil {
		query += ` AND published_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	var terms []string
	var termArgs []interface{}
	if filter.Keyword != "" {
		terms = append(terms, `(title LIKE ? COLLATE NOCASE OR summary_local LIKE ? COLLATE NOCASE OR full_text LIKE ? COLLATE NOCASE OR transcript LIKE ? COLLATE NOCASE)`)
		pattern := "%" + filter.Keyword + "%"
		termArgs = append(termArgs, pattern, pattern, pattern, pattern)
	}
	for _, company := range filter.Companies {
		if company == "" {
			continue
		}
		terms = append(terms, `(company_tags LIKE ? COLLATE NOCASE OR title LIKE ? COLLATE NOCASE)`)
		pattern := "%" + company + "%"
		termArgs = append(termArgs, pattern, pattern)
	}
	if len(terms) > 0 {
		query += ` AND (` + strings.Join(terms, " OR ") + `)`
		args = append(args, termArgs...)
	}

	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY score DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *ArticleRepositoryImpl) SetClip(id int64, clipped bool, folder string) error {
	res, err := r.db.Exec(`UPDATE articles SET is_clipped = ?, clip_folder = ? WHERE id = ?`,
		clipped, folder, id)
	if err != nil {
		return fmt.Errorf("failed to update clip state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check clip update: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CuratedSince returns high-scoring recent articles for the digest feed,
// newest first.
func (r *ArticleRepositoryImpl) CuratedSince(minScore int, since time.Time) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT `+articleColumns+` FROM articles
		WHERE score >= ? AND published_at >= ?
		ORDER BY published_at DESC
	`, minScore, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get curated articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *ArticleRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	return false
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var sourceID sql.NullInt64
	var tags, companyTags, scoreDetails string
	var publishedAt, fetchedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Title, &a.Summary, &a.SummaryLocal, &a.BusinessPoint,
		&a.FullText, &a.Transcript, &a.URL, &a.SourceName, &a.SourceKind,
		&sourceID, &a.Category, &tags, &companyTags, &a.Priority,
		&a.TrustLevel, &a.TrustReason, &a.Score, &scoreDetails,
		&a.Audience, &a.Region, &publishedAt, &fetchedAt,
		&a.IsClipped, &a.ClipFolder)
	if err != nil {
		return nil, err
	}

	if sourceID.Valid {
		id := sourceID.Int64
		a.SourceID = &id
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if fetchedAt.Valid {
		t := fetchedAt.Time
		a.FetchedAt = &t
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(companyTags), &a.CompanyTags); err != nil {
		return nil, fmt.Errorf("failed to decode company tags: %w", err)
	}
	if err := json.Unmarshal([]byte(scoreDetails), &a.ScoreDetails); err != nil {
		return nil, fmt.Errorf("failed to decode score details: %w", err)
	}

	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return articles, nil
}
