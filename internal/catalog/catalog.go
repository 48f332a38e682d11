package catalog

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Series represents a show in the catalog. A one-to-many relationship
	// exists between series and seasons, although the seasons themselves
	// are not contained within this model.
	Series struct {
		ID        uuid.UUID `db:"id" json:"id"`
		Guid      string    `db:"guid" json:"guid"`
		Title     string    `db:"title" json:"title"`
		Adult     bool      `db:"adult" json:"adult"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	}

	// Season groups the episodes of a series. A season is related to many
	// episodes (however this model does not contain them).
	Season struct {
		ID           uuid.UUID `db:"id" json:"id"`
		Guid         string    `db:"guid" json:"guid"`
		SeriesID     uuid.UUID `db:"series_id" json:"series_id"`
		SeasonNumber int       `db:"season_number" json:"season_number"`
		Title        string    `db:"title" json:"title"`
		CreatedAt    time.Time `db:"created_at" json:"created_at"`
		UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	}

	Episode struct {
		ID            uuid.UUID `db:"id" json:"id"`
		Guid          string    `db:"guid" json:"guid"`
		SeasonID      uuid.UUID `db:"season_id" json:"season_id"`
		EpisodeNumber int       `db:"episode_number" json:"episode_number"`
		Title         string    `db:"title" json:"title"`
		CreatedAt     time.Time `db:"created_at" json:"created_at"`
		UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	}

	Movie struct {
		ID        uuid.UUID `db:"id" json:"id"`
		Guid      string    `db:"guid" json:"guid"`
		Title     string    `db:"title" json:"title"`
		Adult     bool      `db:"adult" json:"adult"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	}

	// Release is a torrent/stream file surfaced by a feed. The annotation
	// columns (episodic, season/episode numbers, year) are populated by the
	// Annotator when the release is ingested, and may be overwritten by an
	// operator via the API.
	Release struct {
		ID            uuid.UUID  `db:"id" json:"id"`
		Guid          string     `db:"guid" json:"guid"`
		FeedID        *uuid.UUID `db:"feed_id" json:"feed_id"`
		Name          string     `db:"name" json:"name"`
		InfoURL       *string    `db:"info_url" json:"info_url"`
		DownloadURL   *string    `db:"download_url" json:"download_url"`
		SizeBytes     *int64     `db:"size_bytes" json:"size_bytes"`
		Seeders       *int       `db:"seeders" json:"seeders"`
		Peers         *int       `db:"peers" json:"peers"`
		Category      *string    `db:"category" json:"category"`
		Episodic      *bool      `db:"episodic" json:"episodic"`
		SeasonNumber  *int       `db:"season_number" json:"season_number"`
		EpisodeNumber *int       `db:"episode_number" json:"episode_number"`
		Year          *int       `db:"year" json:"year"`
		CreatedAt     time.Time  `db:"created_at" json:"created_at"`
		UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	}
)

type (
	// InflatedSeason is a season with its episodes attached, used by the
	// browse API to return a whole series hierarchy in one response.
	InflatedSeason struct {
		*Season
		Episodes []*Episode `json:"episodes"`
	}

	InflatedSeries struct {
		*Series
		Seasons []*InflatedSeason `json:"seasons"`
	}
)

// Annotated returns true when the release carries season/episode metadata,
// either scraped from it's name or supplied by an operator.
func (release *Release) Annotated() bool {
	return release.Episodic != nil
}

// ApplyAnnotation copies the annotation on to the release model.
func (release *Release) ApplyAnnotation(annotation *ReleaseAnnotation) {
	release.Episodic = &annotation.Episodic
	release.Year = annotation.Year

	if annotation.Episodic {
		release.SeasonNumber = &annotation.SeasonNumber
		release.EpisodeNumber = &annotation.EpisodeNumber
	} else {
		release.SeasonNumber = nil
		release.EpisodeNumber = nil
	}
}
