package feed

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/event"
	"github.com/kohaven/medley/internal/feed/extract"
	"github.com/kohaven/medley/pkg/logger"
)

type (
	IngestItemState int

	// IngestItem is a single feed entry working its way through the ingestion
	// pipeline. The raw decoded sample is retained so that troubled items can
	// be retried (or have their extraction inspected) without re-fetching the
	// feed.
	IngestItem struct {
		ID                 uuid.UUID
		FeedID             uuid.UUID
		Guid               string
		Sample             map[string]any
		PublishedAt        *time.Time
		State              IngestItemState
		Trouble            *Trouble
		OverrideAnnotation *catalog.ReleaseAnnotation
	}

	// FetchError wraps a failure to retrieve or parse a feed, attributing it
	// to the feed in question.
	FetchError struct {
		FeedID uuid.UUID
		Err    error
	}

	// ExtractionError indicates that a configured extraction rule failed to
	// resolve a field the pipeline cannot proceed without. The diagnostic is
	// the extractor's own human-readable failure string.
	ExtractionError struct {
		Field      string
		Path       string
		Diagnostic string
	}
)

const (
	IDLE IngestItemState = iota
	IMPORT_HOLD
	INGESTING
	TROUBLED
	COMPLETE
)

var (
	ErrNoTrouble                     = errors.New("ingestion has no trouble")
	ErrIngestNotFound                = errors.New("no ingest task could be found")
	ErrResolutionIncompatible        = errors.New("provided resolution method is not valid for ingestion trouble")
	ErrResolutionIncomplete          = errors.New("provided resolution context is missing information required to resolve the trouble")
	ErrResolutionContextIncompatible = errors.New("trouble resolution failed, consult logs for further information")
)

func (err *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %s", err.FeedID, err.Err)
}
func (err *FetchError) Unwrap() error { return err.Err }

func (err *ExtractionError) Error() string {
	return fmt.Sprintf("extraction rule %q (%s) failed: %s", err.Field, err.Path, err.Diagnostic)
}

// ingest is the main task for an ingest item which:
// - Applies the owning feed's extraction rules to the decoded sample
// - Annotates the resulting release name with season/episode/year metadata
// - Saves the release (and any catalog skeleton it implies) to the database
// Any of the above can encounter an error; errors are wrapped as troubles so
// that the failure can be surfaced to (and resolved by) an operator.
func (item *IngestItem) ingest(eventBus event.EventCoordinator, rules ExtractionRules, annotator annotator, data DataStore) error {
	log.Emit(logger.DEBUG, "Beginning ingestion of item %s\n", item)

	release, err := item.buildRelease(rules)
	if err != nil {
		return newTrouble(err)
	}

	annotation := item.OverrideAnnotation
	if annotation == nil {
		annotation, err = annotator.Annotate(release.Name)
		if err != nil {
			return newTrouble(fmt.Errorf("failed to annotate release %q: %w", release.Name, err))
		}
	} else {
		// This item WAS troubled, but a resolution has provided the
		// annotation for us. Consume it so a later retry starts clean.
		log.Emit(logger.INFO, "Retrying ingestion item %s with operator-provided annotation\n", item)
		item.OverrideAnnotation = nil
	}
	release.ApplyAnnotation(annotation)

	if err := data.SaveAnnotatedRelease(release, annotation); err != nil {
		return newTrouble(err)
	}

	log.Emit(logger.SUCCESS, "Saved newly ingested release %q (%s)\n", release.Name, release.ID)
	eventBus.Dispatch(event.NewReleaseEvent, release.ID)

	return nil
}

// buildRelease assembles a catalog release from the item's decoded sample by
// running each configured extraction rule through the path extractor. Fields
// without a rule fall back to the item's standard RSS fields where one
// exists. The release name is mandatory; numeric fields that fail to parse
// are left unset rather than failing the whole item.
func (item *IngestItem) buildRelease(rules ExtractionRules) (*catalog.Release, error) {
	stringField := func(field, path, fallbackKey string) (string, error) {
		if path == "" {
			if fallbackKey == "" {
				return "", nil
			}
			value, _ := item.Sample[fallbackKey].(string)
			return value, nil
		}

		result, ok := extract.Try(item.Sample, path)
		if !ok {
			return "", &ExtractionError{Field: field, Path: path, Diagnostic: result}
		}
		return result, nil
	}

	intField := func(field, path string) (int64, bool, error) {
		raw, err := stringField(field, path, "")
		if err != nil || raw == "" {
			return 0, false, err
		}

		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Emit(logger.WARNING, "Extraction rule %q for item %s produced non-numeric value %q, ignoring\n", field, item, raw)
			return 0, false, nil
		}
		return parsed, true, nil
	}

	optional := func(value string) *string {
		if value == "" {
			return nil
		}
		return &value
	}

	release := &catalog.Release{ID: item.ID, FeedID: &item.FeedID, Guid: item.Guid}

	var err error
	if release.Name, err = stringField("name", rules.Name, "title"); err != nil {
		return nil, err
	}
	if release.Name == "" {
		return nil, &ExtractionError{Field: "name", Path: rules.Name, Diagnostic: "resolved to an empty value"}
	}

	infoURL, err := stringField("info_url", rules.InfoURL, "link")
	if err != nil {
		return nil, err
	}
	downloadURL, err := stringField("download_url", rules.DownloadURL, "")
	if err != nil {
		return nil, err
	}
	category, err := stringField("category", rules.Category, "")
	if err != nil {
		return nil, err
	}
	release.InfoURL = optional(infoURL)
	release.DownloadURL = optional(downloadURL)
	release.Category = optional(category)

	size, hasSize, err := intField("size", rules.Size)
	if err != nil {
		return nil, err
	}
	if hasSize {
		release.SizeBytes = &size
	}
	if seeders, ok, err := intField("seeders", rules.Seeders); err != nil {
		return nil, err
	} else if ok {
		s := int(seeders)
		release.Seeders = &s
	}
	if peers, ok, err := intField("peers", rules.Peers); err != nil {
		return nil, err
	} else if ok {
		p := int(peers)
		release.Peers = &p
	}

	return release, nil
}

// publishedAge reports how long ago the item claims to have been published,
// or nil when the feed did not provide a usable timestamp.
func (item *IngestItem) publishedAge() *time.Duration {
	if item.PublishedAt == nil {
		return nil
	}

	diff := time.Since(*item.PublishedAt)
	return &diff
}

func (item *IngestItem) String() string {
	return fmt.Sprintf("IngestItem{ID=%s feed=%s state=%s}", item.ID, item.FeedID, item.State)
}

func (s IngestItemState) String() string {
	switch s {
	case IDLE:
		return fmt.Sprintf("IDLE[%d]", s)
	case IMPORT_HOLD:
		return fmt.Sprintf("IMPORT_HOLD[%d]", s)
	case INGESTING:
		return fmt.Sprintf("INGESTING[%d]", s)
	case TROUBLED:
		return fmt.Sprintf("TROUBLED[%d]", s)
	case COMPLETE:
		return fmt.Sprintf("COMPLETE[%d]", s)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
