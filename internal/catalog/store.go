package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/pkg/logger"
)

var (
	ErrSeriesNotFound  = errors.New("series does not exist")
	ErrSeasonNotFound  = errors.New("season does not exist")
	ErrEpisodeNotFound = errors.New("episode does not exist")
	ErrMovieNotFound   = errors.New("movie does not exist")
	ErrReleaseNotFound = errors.New("release does not exist")
	ErrIllegalField    = errors.New("field cannot be modified on this entity")

	log = logger.Get("CatalogStore")
)

// EntityKind names the catalog entity types which corrections (and the
// generic UpdateField helper) can address.
type EntityKind string

const (
	SeriesKind  EntityKind = "series"
	SeasonKind  EntityKind = "season"
	EpisodeKind EntityKind = "episode"
	MovieKind   EntityKind = "movie"
	ReleaseKind EntityKind = "release"
)

// correctableFields whitelists the columns a correction is allowed to touch
// for each entity kind. Anything else is rejected with ErrIllegalField.
var correctableFields = map[EntityKind]map[string]string{
	SeriesKind:  {"title": "title"},
	SeasonKind:  {"title": "title", "season_number": "season_number"},
	EpisodeKind: {"title": "title", "episode_number": "episode_number"},
	MovieKind:   {"title": "title"},
	ReleaseKind: {"name": "name", "season_number": "season_number", "episode_number": "episode_number"},
}

// IsCorrectableField reports whether corrections may target the given field
// of the given entity kind. Used to reject illegal submissions up-front,
// before they enter the moderation queue.
func IsCorrectableField(kind EntityKind, field string) bool {
	fields, ok := correctableFields[kind]
	if !ok {
		return false
	}

	_, ok = fields[field]
	return ok
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// SaveSeries upserts the provided series. Existing rows to update are found
// using the 'Guid' as this is expected to be a stable identifier.
//
// NOTE: the ID of the model may be UPDATED to match the existing DB entry (if any)
func (store *Store) SaveSeries(db database.Queryable, series *Series) error {
	err := db.Get(series, `
		INSERT INTO series(id, guid, title, adult, created_at, updated_at)
		VALUES ($1, $2, $3, $4, current_timestamp, current_timestamp)
		ON CONFLICT (guid) DO UPDATE
			SET title = EXCLUDED.title, adult = EXCLUDED.adult, updated_at = current_timestamp
		RETURNING *
	`, series.ID, series.Guid, series.Title, series.Adult)
	if err != nil {
		return fmt.Errorf("failed to save series %s: %w", series.Guid, err)
	}

	return nil
}

// SaveSeason upserts the provided season, matching existing rows on 'Guid'.
//
// NOTE: the ID of the model may be UPDATED to match the existing DB entry (if any)
func (store *Store) SaveSeason(db database.Queryable, season *Season) error {
	err := db.Get(season, `
		INSERT INTO seasons(id, guid, series_id, season_number, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, current_timestamp, current_timestamp)
		ON CONFLICT (guid) DO UPDATE
			SET title = EXCLUDED.title, updated_at = current_timestamp
		RETURNING *
	`, season.ID, season.Guid, season.SeriesID, season.SeasonNumber, season.Title)
	if err != nil {
		return fmt.Errorf("failed to save season %s: %w", season.Guid, err)
	}

	return nil
}

// SaveEpisode upserts the provided episode, matching existing rows on 'Guid'.
//
// NOTE: the ID of the model may be UPDATED to match the existing DB entry (if any)
func (store *Store) SaveEpisode(db database.Queryable, episode *Episode) error {
	err := db.Get(episode, `
		INSERT INTO episodes(id, guid, season_id, episode_number, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, current_timestamp, current_timestamp)
		ON CONFLICT (guid) DO UPDATE
			SET title = EXCLUDED.title, updated_at = current_timestamp
		RETURNING *
	`, episode.ID, episode.Guid, episode.SeasonID, episode.EpisodeNumber, episode.Title)
	if err != nil {
		return fmt.Errorf("failed to save episode %s: %w", episode.Guid, err)
	}

	return nil
}

// SaveMovie upserts the provided movie, matching existing rows on 'Guid'.
//
// NOTE: the ID of the model may be UPDATED to match the existing DB entry (if any)
func (store *Store) SaveMovie(db database.Queryable, movie *Movie) error {
	err := db.Get(movie, `
		INSERT INTO movies(id, guid, title, adult, created_at, updated_at)
		VALUES ($1, $2, $3, $4, current_timestamp, current_timestamp)
		ON CONFLICT (guid) DO UPDATE
			SET title = EXCLUDED.title, adult = EXCLUDED.adult, updated_at = current_timestamp
		RETURNING *
	`, movie.ID, movie.Guid, movie.Title, movie.Adult)
	if err != nil {
		return fmt.Errorf("failed to save movie %s: %w", movie.Guid, err)
	}

	return nil
}

func (store *Store) ListSeries(db database.Queryable) ([]*Series, error) {
	query, args, err := psql.Select("*").From("series").OrderBy("title").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list series query: %w", err)
	}

	results := make([]*Series, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetSeries(db database.Queryable, id uuid.UUID) (*Series, error) {
	var result Series
	if err := getByID(db, "series", id, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (store *Store) ListSeasonsForSeries(db database.Queryable, seriesID uuid.UUID) ([]*Season, error) {
	query, args, err := psql.Select("*").From("seasons").
		Where(squirrel.Eq{"series_id": seriesID}).
		OrderBy("season_number").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list seasons query: %w", err)
	}

	results := make([]*Season, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetSeason(db database.Queryable, id uuid.UUID) (*Season, error) {
	var result Season
	if err := getByID(db, "seasons", id, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (store *Store) ListEpisodesForSeason(db database.Queryable, seasonID uuid.UUID) ([]*Episode, error) {
	query, args, err := psql.Select("*").From("episodes").
		Where(squirrel.Eq{"season_id": seasonID}).
		OrderBy("episode_number").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list episodes query: %w", err)
	}

	results := make([]*Episode, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetEpisode(db database.Queryable, id uuid.UUID) (*Episode, error) {
	var result Episode
	if err := getByID(db, "episodes", id, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEpisodeNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (store *Store) ListMovies(db database.Queryable) ([]*Movie, error) {
	query, args, err := psql.Select("*").From("movies").OrderBy("title").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list movies query: %w", err)
	}

	results := make([]*Movie, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

func (store *Store) GetMovie(db database.Queryable, id uuid.UUID) (*Movie, error) {
	var result Movie
	if err := getByID(db, "movies", id, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}

	return &result, nil
}

// SaveRelease upserts the provided release, matching existing rows using the
// feed item 'Guid'. Re-ingesting a known release only refreshes its volatile
// tracker stats (seeders/peers) and never clobbers an existing annotation.
func (store *Store) SaveRelease(db database.Queryable, release *Release) error {
	err := db.Get(release, `
		INSERT INTO releases(
			id, guid, feed_id, name, info_url, download_url, size_bytes, seeders, peers,
			category, episodic, season_number, episode_number, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, current_timestamp, current_timestamp)
		ON CONFLICT (guid) DO UPDATE
			SET seeders = EXCLUDED.seeders, peers = EXCLUDED.peers, updated_at = current_timestamp
		RETURNING *
	`, release.ID, release.Guid, release.FeedID, release.Name, release.InfoURL, release.DownloadURL,
		release.SizeBytes, release.Seeders, release.Peers, release.Category, release.Episodic,
		release.SeasonNumber, release.EpisodeNumber, release.Year)
	if err != nil {
		return fmt.Errorf("failed to save release %s: %w", release.Guid, err)
	}

	return nil
}

func (store *Store) GetRelease(db database.Queryable, id uuid.UUID) (*Release, error) {
	var result Release
	if err := getByID(db, "releases", id, &result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, err
	}

	return &result, nil
}

// ListReleases returns releases, optionally filtered to a single feed.
func (store *Store) ListReleases(db database.Queryable, feedID *uuid.UUID) ([]*Release, error) {
	builder := psql.Select("*").From("releases").OrderBy("created_at DESC")
	if feedID != nil {
		builder = builder.Where(squirrel.Eq{"feed_id": *feedID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list releases query: %w", err)
	}

	results := make([]*Release, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

// ListUnannotatedReleases returns releases whose name could not be scraped
// at ingestion time and which have not been annotated by an operator since.
func (store *Store) ListUnannotatedReleases(db database.Queryable) ([]*Release, error) {
	query, args, err := psql.Select("*").From("releases").
		Where(squirrel.Eq{"episodic": nil}).
		OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct unannotated releases query: %w", err)
	}

	results := make([]*Release, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

// UpdateReleaseAnnotation overwrites the annotation columns of the release
// with the ID provided.
func (store *Store) UpdateReleaseAnnotation(db database.Queryable, id uuid.UUID, annotation *ReleaseAnnotation) error {
	var seasonNumber, episodeNumber *int
	if annotation.Episodic {
		seasonNumber = &annotation.SeasonNumber
		episodeNumber = &annotation.EpisodeNumber
	}

	result, err := db.Exec(`
		UPDATE releases
		SET episodic = $1, season_number = $2, episode_number = $3, year = $4, updated_at = current_timestamp
		WHERE id = $5
	`, annotation.Episodic, seasonNumber, episodeNumber, annotation.Year, id)
	if err != nil {
		return fmt.Errorf("failed to update annotation for release %s: %w", id, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrReleaseNotFound
	}

	return nil
}

// UpdateField applies a single field change to the entity addressed by
// kind+id. Only whitelisted fields may be modified; the caller (the
// correction service) is responsible for validating the value itself.
func (store *Store) UpdateField(db database.Queryable, kind EntityKind, id uuid.UUID, field string, value string) error {
	fields, ok := correctableFields[kind]
	if !ok {
		return fmt.Errorf("%w: unknown entity kind %q", ErrIllegalField, kind)
	}

	column, ok := fields[field]
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrIllegalField, field, kind)
	}

	tables := map[EntityKind]string{
		SeriesKind:  "series",
		SeasonKind:  "seasons",
		EpisodeKind: "episodes",
		MovieKind:   "movies",
		ReleaseKind: "releases",
	}

	query, args, err := psql.Update(tables[kind]).
		Set(column, value).
		Set("updated_at", squirrel.Expr("current_timestamp")).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to construct update field query: %w", err)
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s of %s %s: %w", field, kind, id, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("no %s with ID %s", kind, id)
	}

	log.Emit(logger.INFO, "Updated %s of %s %s\n", field, kind, id)
	return nil
}

// GetInflatedSeries assembles the full hierarchy for a series: the series
// row itself, each of its seasons, and each season's episodes.
func (store *Store) GetInflatedSeries(db database.Queryable, id uuid.UUID) (*InflatedSeries, error) {
	series, err := store.GetSeries(db, id)
	if err != nil {
		return nil, err
	}

	seasons, err := store.ListSeasonsForSeries(db, id)
	if err != nil {
		return nil, err
	}

	inflatedSeasons := make([]*InflatedSeason, len(seasons))
	for k, season := range seasons {
		episodes, err := store.ListEpisodesForSeason(db, season.ID)
		if err != nil {
			return nil, err
		}

		inflatedSeasons[k] = &InflatedSeason{Season: season, Episodes: episodes}
	}

	return &InflatedSeries{Series: series, Seasons: inflatedSeasons}, nil
}

// ListReleaseGuids returns the guids of all releases currently known, used
// by the ingest service to skip items which have already been imported.
func (store *Store) ListReleaseGuids(db database.Queryable) ([]string, error) {
	query, args, err := psql.Select("guid").From("releases").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct release guids query: %w", err)
	}

	results := make([]string, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, err
	}

	return results, nil
}

func getByID(db database.Queryable, table string, id uuid.UUID, dest any) error {
	query, args, err := psql.Select("*").From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to construct select query for %s: %w", table, err)
	}

	return db.Get(dest, query, args...)
}
