package feed

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/database"
)

var (
	ErrFeedNotFound = errors.New("feed not found")

	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

type Store struct{}

func (store *Store) List(db database.Queryable) ([]*Feed, error) {
	query, args, err := psql.Select("*").From("feeds").OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feed list query: %w", err)
	}

	var feeds []*Feed
	if err := db.Select(&feeds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}

	return feeds, nil
}

func (store *Store) Get(db database.Queryable, id uuid.UUID) (*Feed, error) {
	query, args, err := psql.Select("*").From("feeds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feed query: %w", err)
	}

	var feed Feed
	if err := db.Get(&feed, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFeedNotFound
		}
		return nil, fmt.Errorf("failed to fetch feed %s: %w", id, err)
	}

	return &feed, nil
}

func (store *Store) Save(db database.Queryable, feed *Feed) error {
	var updated Feed
	if err := db.Get(&updated, `
		INSERT INTO feeds(id, name, url, poll_interval_seconds, enabled, extraction_rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, current_timestamp, current_timestamp)
		ON CONFLICT(id) DO UPDATE
			SET (name, url, poll_interval_seconds, enabled, extraction_rules, updated_at) =
				(EXCLUDED.name, EXCLUDED.url, EXCLUDED.poll_interval_seconds, EXCLUDED.enabled, EXCLUDED.extraction_rules, current_timestamp)
		RETURNING *`,
		feed.ID, feed.Name, feed.URL, feed.PollIntervalSeconds, feed.Enabled, feed.ExtractionRules,
	); err != nil {
		return fmt.Errorf("failed to save feed: %w", err)
	}

	*feed = updated
	return nil
}

func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	query, args, err := psql.Delete("feeds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build feed delete query: %w", err)
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete feed %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrFeedNotFound
	}

	return nil
}

// SaveLatestSample records the most recently observed feed item for a feed,
// used by the extraction rule testing endpoint.
func (store *Store) SaveLatestSample(db database.Queryable, id uuid.UUID, sample map[string]any) error {
	if _, err := db.Exec(`UPDATE feeds SET latest_sample = $2, updated_at = current_timestamp WHERE id = $1`,
		id, database.NewJsonColumn(&sample),
	); err != nil {
		return fmt.Errorf("failed to save latest sample for feed %s: %w", id, err)
	}

	return nil
}

// MarkPolled stamps the feed with the time of its latest successful fetch.
func (store *Store) MarkPolled(db database.Queryable, id uuid.UUID, at time.Time) error {
	if _, err := db.Exec(`UPDATE feeds SET last_polled_at = $2, updated_at = current_timestamp WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to mark feed %s polled: %w", id, err)
	}

	return nil
}
