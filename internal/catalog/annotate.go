package catalog

import (
	"errors"
	"regexp"
	"strconv"
)

// ReleaseAnnotation holds the season/episode metadata scraped from a
// release name. Title is the normalised show/movie title with the release
// tagging (resolution, codec, year) stripped off.
type ReleaseAnnotation struct {
	Title         string
	Episodic      bool
	SeasonNumber  int
	EpisodeNumber int
	Year          *int
}

var ErrUnrecognisedReleaseName = errors.New("failed to annotate release - name matches neither episodic nor movie naming")

type Annotator struct{}

var (
	normaliserMatcher = regexp.MustCompile(`(?i)[\.\s]`)
	seasonMatcher     = regexp.MustCompile(`(?i)^(.*?)\_?s(\d+)\_?e(\d+)\_*((?:20|19)\d{2})?`)
	movieMatcher      = regexp.MustCompile(`(?i)^(.+?)\_*((?:20|19)\d{2})`)
)

// Annotate uses regular expressions to try and find:
// - Title
// - Year
// - Is episode or movie?
// - Season/episode information
// inside the release name provided. Names which match neither the episodic
// nor the movie naming convention return ErrUnrecognisedReleaseName so the
// caller can hold the release for manual annotation.
func (annotator *Annotator) Annotate(releaseName string) (*ReleaseAnnotation, error) {
	normalizedName := normaliserMatcher.ReplaceAllString(releaseName, "_")

	// Search for season info and optional year information
	if seasonGroups := seasonMatcher.FindStringSubmatch(normalizedName); len(seasonGroups) >= 1 {
		annotation := ReleaseAnnotation{
			Title:         seasonGroups[1],
			Episodic:      true,
			SeasonNumber:  convertToInt(seasonGroups[2]),
			EpisodeNumber: convertToInt(seasonGroups[3]),
		}
		if seasonGroups[4] != "" {
			year := convertToInt(seasonGroups[4])
			annotation.Year = &year
		}

		return &annotation, nil
	}

	// Try find if it's a movie instead
	if movieGroups := movieMatcher.FindStringSubmatch(normalizedName); len(movieGroups) >= 1 {
		year := convertToInt(movieGroups[2])
		return &ReleaseAnnotation{
			Title:         movieGroups[1],
			Episodic:      false,
			SeasonNumber:  -1,
			EpisodeNumber: -1,
			Year:          &year,
		}, nil
	}

	return nil, ErrUnrecognisedReleaseName
}

// convertToInt converts the provided string to an int, returning
// -1 in the case of an error.
func convertToInt(input string) int {
	v, err := strconv.Atoi(input)
	if err != nil {
		return -1
	}

	return v
}
