package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/internal/feed"
)

type (
	// dataOrchestrator is responsible for managing all of Medley's resources,
	// especially highly-relational data. You can think of all
	// the data stores below this layer being 'dumb', and this store
	// linking them together and providing the database instance
	//
	// If consumers need to be able to access data stores directly, they're
	// welcome to do so - however caution should be taken as stores have no
	// obligation to take care of relational data (which is the orchestrator's job)
	dataOrchestrator struct {
		db           database.Manager
		annotator    *catalog.Annotator
		FeedStore    *feed.Store
		CatalogStore *catalog.Store
	}
)

func NewDataOrchestrator(db database.Manager) *dataOrchestrator {
	return &dataOrchestrator{
		db:           db,
		annotator:    &catalog.Annotator{},
		FeedStore:    &feed.Store{},
		CatalogStore: catalog.NewStore(),
	}
}

func (data *dataOrchestrator) ListFeeds() ([]*feed.Feed, error) {
	return data.FeedStore.List(data.db.GetSqlxDb())
}

func (data *dataOrchestrator) GetFeed(feedID uuid.UUID) (*feed.Feed, error) {
	return data.FeedStore.Get(data.db.GetSqlxDb(), feedID)
}

func (data *dataOrchestrator) SaveFeed(f *feed.Feed) error {
	return data.FeedStore.Save(data.db.GetSqlxDb(), f)
}

func (data *dataOrchestrator) DeleteFeed(feedID uuid.UUID) error {
	return data.FeedStore.Delete(data.db.GetSqlxDb(), feedID)
}

func (data *dataOrchestrator) SaveFeedSample(feedID uuid.UUID, sample map[string]any) error {
	return data.FeedStore.SaveLatestSample(data.db.GetSqlxDb(), feedID, sample)
}

func (data *dataOrchestrator) MarkFeedPolled(feedID uuid.UUID, at time.Time) error {
	return data.FeedStore.MarkPolled(data.db.GetSqlxDb(), feedID, at)
}

func (data *dataOrchestrator) ListSeries() ([]*catalog.Series, error) {
	return data.CatalogStore.ListSeries(data.db.GetSqlxDb())
}

func (data *dataOrchestrator) GetInflatedSeries(seriesID uuid.UUID) (*catalog.InflatedSeries, error) {
	return data.CatalogStore.GetInflatedSeries(data.db.GetSqlxDb(), seriesID)
}

func (data *dataOrchestrator) ListMovies() ([]*catalog.Movie, error) {
	return data.CatalogStore.ListMovies(data.db.GetSqlxDb())
}

func (data *dataOrchestrator) GetMovie(movieID uuid.UUID) (*catalog.Movie, error) {
	return data.CatalogStore.GetMovie(data.db.GetSqlxDb(), movieID)
}

func (data *dataOrchestrator) ListReleases(feedID *uuid.UUID) ([]*catalog.Release, error) {
	return data.CatalogStore.ListReleases(data.db.GetSqlxDb(), feedID)
}

func (data *dataOrchestrator) GetRelease(releaseID uuid.UUID) (*catalog.Release, error) {
	return data.CatalogStore.GetRelease(data.db.GetSqlxDb(), releaseID)
}

func (data *dataOrchestrator) ListReleaseGuids() ([]string, error) {
	return data.CatalogStore.ListReleaseGuids(data.db.GetSqlxDb())
}

// SaveAnnotatedRelease transactionally stores a newly ingested release along
// with the catalog entities its annotation describes. An episodic annotation
// upserts the series/season/episode hierarchy; a movie annotation upserts a
// movie. A nil annotation stores the bare release only, leaving it for a
// later annotation scan.
func (data *dataOrchestrator) SaveAnnotatedRelease(release *catalog.Release, annotation *catalog.ReleaseAnnotation) error {
	return data.db.WrapTx(func(tx *sqlx.Tx) error {
		if annotation != nil {
			if err := saveCatalogSkeleton(tx, data.CatalogStore, annotation); err != nil {
				return err
			}
		}

		return data.CatalogStore.SaveRelease(tx, release)
	})
}

// AnnotateRelease overwrites the annotation columns of the given release and
// upserts the catalog entities the new annotation describes, transactionally.
func (data *dataOrchestrator) AnnotateRelease(releaseID uuid.UUID, annotation *catalog.ReleaseAnnotation) error {
	return data.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := data.CatalogStore.UpdateReleaseAnnotation(tx, releaseID, annotation); err != nil {
			return err
		}

		return saveCatalogSkeleton(tx, data.CatalogStore, annotation)
	})
}

// ScanUnannotatedReleases runs the annotator over every release which is
// missing annotation metadata. Releases whose names cannot be recognised are
// left untouched for an operator to annotate manually.
func (data *dataOrchestrator) ScanUnannotatedReleases() (int, int, error) {
	releases, err := data.CatalogStore.ListUnannotatedReleases(data.db.GetSqlxDb())
	if err != nil {
		return 0, 0, err
	}

	annotated := 0
	for _, release := range releases {
		annotation, err := data.annotator.Annotate(release.Name)
		if err != nil {
			continue
		}

		if err := data.AnnotateRelease(release.ID, annotation); err != nil {
			return len(releases), annotated, err
		}
		annotated++
	}

	return len(releases), annotated, nil
}

// saveCatalogSkeleton upserts the catalog entities described by the given
// annotation. The stores match on guid, so re-ingesting releases for a known
// show simply refreshes the existing rows.
func saveCatalogSkeleton(tx *sqlx.Tx, store *catalog.Store, annotation *catalog.ReleaseAnnotation) error {
	// Annotator titles arrive underscore-normalised; operator-supplied ones
	// may carry spaces or dots. Fold both forms to the same guid so ingested
	// and manually annotated releases converge on one catalog row.
	guid := strings.NewReplacer(" ", "_", ".", "_").Replace(strings.ToLower(strings.Trim(annotation.Title, "_ ")))
	title := strings.TrimSpace(strings.ReplaceAll(annotation.Title, "_", " "))

	if !annotation.Episodic {
		movie := &catalog.Movie{ID: uuid.New(), Guid: guid, Title: title}
		return store.SaveMovie(tx, movie)
	}

	series := &catalog.Series{ID: uuid.New(), Guid: guid, Title: title}
	if err := store.SaveSeries(tx, series); err != nil {
		return err
	}

	// SaveSeries rewrites series.ID to the existing row on conflict, so the
	// season below always attaches to the canonical series.
	season := &catalog.Season{
		ID:           uuid.New(),
		Guid:         fmt.Sprintf("%s/s%d", guid, annotation.SeasonNumber),
		SeriesID:     series.ID,
		SeasonNumber: annotation.SeasonNumber,
		Title:        fmt.Sprintf("Season %d", annotation.SeasonNumber),
	}
	if err := store.SaveSeason(tx, season); err != nil {
		return err
	}

	episode := &catalog.Episode{
		ID:            uuid.New(),
		Guid:          fmt.Sprintf("%s/s%d/e%d", guid, annotation.SeasonNumber, annotation.EpisodeNumber),
		SeasonID:      season.ID,
		EpisodeNumber: annotation.EpisodeNumber,
		Title:         fmt.Sprintf("Episode %d", annotation.EpisodeNumber),
	}

	return store.SaveEpisode(tx, episode)
}
