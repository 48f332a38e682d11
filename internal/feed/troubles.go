package feed

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kohaven/medley/internal/catalog"
)

type (
	TroubleType int
	Trouble     struct {
		error
		tType TroubleType
	}

	ResolutionType       int
	RetryResolution      struct{}
	AbortResolution      struct{}
	AnnotationResolution struct{ annotation catalog.ReleaseAnnotation }
)

const (
	FETCH_FAILURE TroubleType = iota
	EXTRACTION_FAILURE
	ANNOTATION_FAILURE
	GENERIC_FAILURE

	RETRY ResolutionType = iota
	SPECIFY_ANNOTATION
	ABORT
)

var allowedResolutionTypes = map[TroubleType][]ResolutionType{
	FETCH_FAILURE:      {ABORT, RETRY},
	EXTRACTION_FAILURE: {ABORT, RETRY},
	ANNOTATION_FAILURE: {ABORT, RETRY, SPECIFY_ANNOTATION},
	GENERIC_FAILURE:    {ABORT, RETRY},
}

func newTrouble(err error) Trouble {
	switch {
	case errors.Is(err, catalog.ErrUnrecognisedReleaseName):
		return Trouble{error: err, tType: ANNOTATION_FAILURE}
	case errors.As(err, new(*ExtractionError)):
		return Trouble{error: err, tType: EXTRACTION_FAILURE}
	case errors.As(err, new(*FetchError)):
		return Trouble{error: err, tType: FETCH_FAILURE}
	}

	return Trouble{error: err, tType: GENERIC_FAILURE}
}

func (t *Trouble) Type() TroubleType { return t.tType }

func (t *Trouble) AllowedResolutionTypes() []ResolutionType {
	if allowed, ok := allowedResolutionTypes[t.tType]; ok {
		return allowed
	}

	return []ResolutionType{}
}

func (t *Trouble) isResolutionTypeAllowed(resType ResolutionType) bool {
	for _, v := range t.AllowedResolutionTypes() {
		if v == resType {
			return true
		}
	}

	return false
}

func (t *Trouble) GenerateResolution(resolutionMethod ResolutionType, context map[string]string) (interface{}, error) {
	if !t.isResolutionTypeAllowed(resolutionMethod) {
		return nil, ErrResolutionIncompatible
	}

	switch resolutionMethod {
	case ABORT:
		return &AbortResolution{}, nil
	case RETRY:
		return &RetryResolution{}, nil
	case SPECIFY_ANNOTATION:
		annotation, err := annotationFromContext(context)
		if err != nil {
			return nil, err
		}

		return &AnnotationResolution{annotation: *annotation}, nil
	default:
		return nil, ErrResolutionIncompatible
	}
}

// annotationFromContext builds a ReleaseAnnotation from the string map
// provided by a trouble resolution request. 'title' is mandatory; season
// and episode numbers are mandatory only when 'episodic' is true.
func annotationFromContext(context map[string]string) (*catalog.ReleaseAnnotation, error) {
	title, ok := context["title"]
	if !ok || title == "" {
		return nil, ErrResolutionIncomplete
	}

	annotation := catalog.ReleaseAnnotation{Title: title, SeasonNumber: -1, EpisodeNumber: -1}
	annotation.Episodic = context["episodic"] == "true"

	intField := func(key string) (int, bool, error) {
		raw, present := context[key]
		if !present {
			return 0, false, nil
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s is not numeric", ErrResolutionContextIncompatible, key)
		}
		return parsed, true, nil
	}

	season, hasSeason, err := intField("season_number")
	if err != nil {
		return nil, err
	}
	episode, hasEpisode, err := intField("episode_number")
	if err != nil {
		return nil, err
	}
	year, hasYear, err := intField("year")
	if err != nil {
		return nil, err
	}

	if annotation.Episodic {
		if !hasSeason || !hasEpisode {
			return nil, ErrResolutionIncomplete
		}
		annotation.SeasonNumber = season
		annotation.EpisodeNumber = episode
	}
	if hasYear {
		annotation.Year = &year
	}

	return &annotation, nil
}

func (t TroubleType) String() string {
	switch t {
	case FETCH_FAILURE:
		return fmt.Sprintf("FETCH_FAILURE[%d]", t)
	case EXTRACTION_FAILURE:
		return fmt.Sprintf("EXTRACTION_FAILURE[%d]", t)
	case ANNOTATION_FAILURE:
		return fmt.Sprintf("ANNOTATION_FAILURE[%d]", t)
	case GENERIC_FAILURE:
		return fmt.Sprintf("GENERIC_FAILURE[%d]", t)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", t)
	}
}
