package catalog_test

import (
	"testing"

	"github.com/kohaven/medley/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func Test_Annotate_EpisodicReleases(t *testing.T) {
	annotator := &catalog.Annotator{}

	tests := []struct {
		summary       string
		releaseName   string
		seasonNumber  int
		episodeNumber int
		year          *int
	}{
		{"dotted name", "Show.Name.S02E05.1080p.WEB.H264", 2, 5, nil},
		{"spaced name", "Show Name s01e01 720p", 1, 1, nil},
		{"with year", "Show.Name.S03E12.2021.1080p", 3, 12, intPtr(2021)},
		{"multi digit numbers", "Show.Name.S10E104.HDTV", 10, 104, nil},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			annotation, err := annotator.Annotate(tt.releaseName)
			assert.NoError(t, err)
			assert.True(t, annotation.Episodic)
			assert.Equal(t, tt.seasonNumber, annotation.SeasonNumber)
			assert.Equal(t, tt.episodeNumber, annotation.EpisodeNumber)
			assert.Equal(t, tt.year, annotation.Year)
		})
	}
}

func Test_Annotate_MovieReleases(t *testing.T) {
	annotator := &catalog.Annotator{}

	tests := []struct {
		summary     string
		releaseName string
		year        int
	}{
		{"dotted name", "Some.Movie.2019.2160p.BluRay", 2019},
		{"spaced name", "Some Movie 1997 DVDRip", 1997},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			annotation, err := annotator.Annotate(tt.releaseName)
			assert.NoError(t, err)
			assert.False(t, annotation.Episodic)
			assert.Equal(t, -1, annotation.SeasonNumber)
			assert.Equal(t, -1, annotation.EpisodeNumber)
			if assert.NotNil(t, annotation.Year) {
				assert.Equal(t, tt.year, *annotation.Year)
			}
		})
	}
}

func Test_Annotate_UnrecognisedName(t *testing.T) {
	annotator := &catalog.Annotator{}

	annotation, err := annotator.Annotate("not a recognisable release")
	assert.Nil(t, annotation)
	assert.ErrorIs(t, err, catalog.ErrUnrecognisedReleaseName)
}

func intPtr(v int) *int { return &v }
