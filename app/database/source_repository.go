package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SourceRepositoryImpl handles database operations for sources
type SourceRepositoryImpl struct {
	db *DB
}

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, kind, origin, name, category, enabled, last_fetched_at, created_at`

func (r *SourceRepositoryImpl) List() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

func (r *SourceRepositoryImpl) GetEnabled() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

func (r *SourceRepositoryImpl) GetByID(id int64) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *SourceRepositoryImpl) Create(source Source) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO sources (kind, origin, name, category, enabled)
		VALUES (?, ?, ?, ?, ?)
	`, source.Kind, source.Origin, source.Name, source.Category, source.Enabled)
	if err != nil {
		return 0, fmt.Errorf("failed to create source: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get source id: %w", err)
	}
	return id, nil
}

// Upsert registers a source by (kind, origin), updating name and category on
// conflict. Used when seeding sources from the configuration file.
func (r *SourceRepositoryImpl) Upsert(source Source) (int64, error) {
	_, err := r.db.Exec(`
		INSERT INTO sources (kind, origin, name, category, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, origin) DO UPDATE SET
			name = excluded.name,
			category = excluded.category
	`, source.Kind, source.Origin, source.Name, source.Category, source.Enabled)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert source: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM sources WHERE kind = ? AND origin = ?`,
		source.Kind, source.Origin).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve source id: %w", err)
	}
	return id, nil
}

func (r *SourceRepositoryImpl) SetEnabled(id int64, enabled bool) error {
	_, err := r.db.Exec(`UPDATE sources SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// UpdateLastFetched stamps the source after a fetch pass, independent of how
// many items were accepted.
func (r *SourceRepositoryImpl) UpdateLastFetched(id int64, at time.Time) error {
	_, err := r.db.Exec(`UPDATE sources SET last_fetched_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last fetched: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*Source, error) {
	var s Source
	var lastFetched sql.NullTime
	err := row.Scan(&s.ID, &s.Kind, &s.Origin, &s.Name, &s.Category,
		&s.Enabled, &lastFetched, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		s.LastFetchedAt = &t
	}
	return &s, nil
}

func scanSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}
	return sources, nil
}
