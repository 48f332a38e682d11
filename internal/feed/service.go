package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/event"
	"github.com/kohaven/medley/internal/feed/extract"
	"github.com/kohaven/medley/pkg/logger"
	"github.com/kohaven/medley/pkg/worker"
	"github.com/mmcdole/gofeed"
)

var log = logger.Get("FeedServ")

type (
	annotator interface {
		Annotate(releaseName string) (*catalog.ReleaseAnnotation, error)
	}

	// DataStore is the surface of the data layer the ingestion service needs:
	// feed definitions to poll, known release GUIDs for deduplication, and a
	// sink for annotated releases (which the data layer fans out in to the
	// catalog hierarchy).
	DataStore interface {
		ListFeeds() ([]*Feed, error)
		MarkFeedPolled(feedID uuid.UUID, at time.Time) error
		SaveFeedSample(feedID uuid.UUID, sample map[string]any) error
		ListReleaseGuids() ([]string, error)
		SaveAnnotatedRelease(release *catalog.Release, annotation *catalog.ReleaseAnnotation) error
	}

	// Config contains configuration options that allow customization
	// of how Medley polls feeds and ingests the releases it discovers.
	Config struct {
		// A 'force' sync is performed on this interval regardless of the
		// per-feed poll intervals, to pick up newly created feeds promptly.
		ForceSyncSeconds int `yaml:"force_sync_seconds" env:"INGEST_FORCE_SYNC_SECONDS" env-default:"60"`

		// When a new item is detected, very recently published entries are
		// likely still being seeded/mirrored by the indexer. Items younger
		// than this are held before processing.
		RequiredPublishAgeSeconds int `yaml:"required_publish_age_seconds" env:"INGEST_MIN_PUBLISH_AGE_SECONDS" env-default:"0"`

		// Controls the number of workers that can perform ingestions.
		// Caution should be taken to not increase this value too high, as
		// ingestion writes to the database for every discovered release.
		IngestionParallelism int `yaml:"ingestion_parallelism" env:"INGEST_PARALLELISM" env-default:"2"`

		// Timeout applied to each feed fetch.
		FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" env:"INGEST_FETCH_TIMEOUT_SECONDS" env-default:"30"`
	}

	fetcher interface {
		Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
	}

	// ingestService is responsible for polling the configured feeds and
	// ingesting the releases they surface. Discovered items are:
	// - Deduplicated against releases already in the database
	// - Run through the owning feed's extraction rules
	// - Annotated with season/episode/year metadata scraped from their name
	// - Added to Medley's database, along with any catalog skeleton implied
	ingestService struct {
		*sync.Mutex
		fetcher   fetcher
		annotator annotator

		dataStore DataStore
		eventBus  event.EventCoordinator

		config           Config
		items            []*IngestItem
		importHoldTimers map[uuid.UUID]*time.Timer
		workerPool       *worker.WorkerPool
	}

	gofeedFetcher struct {
		client *http.Client
	}
)

func (f *gofeedFetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	return parser.ParseURLWithContext(url, ctx)
}

// New creates a new feed ingestion service, using the provided config for
// subsequent calls to 'Run'.
func New(config Config, annotator annotator, store DataStore, eventBus event.EventCoordinator) (*ingestService, error) {
	if config.IngestionParallelism < 1 {
		return nil, fmt.Errorf("ingestion parallelism must be at least 1, got %d", config.IngestionParallelism)
	}

	service := &ingestService{
		Mutex:     &sync.Mutex{},
		fetcher:   &gofeedFetcher{client: &http.Client{Timeout: time.Duration(config.FetchTimeoutSeconds) * time.Second}},
		annotator: annotator,

		dataStore: store,
		eventBus:  eventBus,

		config:           config,
		items:            make([]*IngestItem, 0),
		importHoldTimers: make(map[uuid.UUID]*time.Timer),
		workerPool:       worker.NewWorkerPool(),
	}

	for i := 0; i < config.IngestionParallelism; i++ {
		label := fmt.Sprintf("ingest-worker-%d", i)
		service.workerPool.PushWorker(worker.NewWorker(label, service.ExecuteTask))
	}

	return service, nil
}

// Run is the main entry point of this service. It performs an immediate
// polling pass and then re-checks which feeds are due on a fixed cadence;
// each feed's own poll interval decides whether it is actually fetched.
// To kill the service, the calling code should cancel the context provided.
func (service *ingestService) Run(ctx context.Context) error {
	if err := service.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer service.workerPool.Close()
	defer service.clearAllImportHoldTimers()

	forceSyncChannel := time.NewTicker(time.Second * time.Duration(service.config.ForceSyncSeconds))
	defer forceSyncChannel.Stop()

	service.PollFeeds(ctx, false)

	for {
		select {
		case <-forceSyncChannel.C:
			service.PollFeeds(ctx, false)
		case <-ctx.Done():
			return nil
		}
	}
}

// ExecuteTask is the worker function for the ingestion service, which is
// called by the services WorkerPool.
// This function will claim the first IDLE item it finds and attempt to ingest
// it. If the ingestion fails with a Trouble, then it will be set on the item
// and it's state set to TROUBLED.
func (service *ingestService) ExecuteTask(w worker.Worker) (bool, error) {
	item, rules := service.claimIdleItem()
	if item == nil {
		return false, nil
	}

	if err := item.ingest(service.eventBus, rules, service.annotator, service.dataStore); err != nil {
		var trbl Trouble
		if errors.As(err, &trbl) {
			log.Emit(logger.WARNING, "Item %s is troubled: %s\n", item, trbl.Error())
			service.Lock()
			item.Trouble = &trbl
			item.State = TROUBLED
			service.Unlock()
			service.eventBus.Dispatch(event.IngestUpdateEvent, item.ID)
		} else {
			return false, err
		}
	} else {
		service.Lock()
		item.State = COMPLETE
		service.Unlock()
		service.eventBus.Dispatch(event.IngestCompleteEvent, item.ID)
	}

	return true, nil
}

// PollFeeds fetches every feed that is due (or all enabled feeds, when force
// is set) and queues any releases not already known to the database. Fetch
// failures are logged and skipped; one broken indexer should not stall the
// others.
func (service *ingestService) PollFeeds(ctx context.Context, force bool) {
	feeds, err := service.dataStore.ListFeeds()
	if err != nil {
		log.Emit(logger.ERROR, "Failed to list feeds for polling: %s\n", err.Error())
		return
	}

	now := time.Now()
	for _, f := range feeds {
		if !f.Enabled || (!force && !f.Due(now)) {
			continue
		}

		if err := service.pollFeed(ctx, f); err != nil {
			log.Emit(logger.ERROR, "Polling of feed %s (%s) failed: %s\n", f.ID, f.Name, err.Error())
		}
	}
}

// PollAllFeeds forces an immediate poll of every enabled feed. Exposed for
// the API layer, which has no long-lived context of its own to thread in.
func (service *ingestService) PollAllFeeds() {
	service.PollFeeds(context.Background(), true)
}

// PollFeed forces a fetch of a single feed, regardless of whether it is due.
func (service *ingestService) PollFeed(ctx context.Context, f *Feed) error {
	return service.pollFeed(ctx, f)
}

func (service *ingestService) pollFeed(ctx context.Context, f *Feed) error {
	parsed, err := service.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return &FetchError{FeedID: f.ID, Err: err}
	}

	if len(parsed.Items) > 0 {
		sample := ItemToSample(parsed.Items[0])
		if err := service.dataStore.SaveFeedSample(f.ID, sample); err != nil {
			log.Emit(logger.WARNING, "Failed to save latest sample for feed %s: %s\n", f.ID, err.Error())
		}
	}

	service.queueNewItems(f, parsed.Items)

	if err := service.dataStore.MarkFeedPolled(f.ID, time.Now()); err != nil {
		log.Emit(logger.WARNING, "Failed to mark feed %s polled: %s\n", f.ID, err.Error())
	}

	service.eventBus.Dispatch(event.FeedUpdateEvent, f.ID)
	return nil
}

// queueNewItems inserts ingest items for each parsed entry whose GUID is not
// already represented by a database row or an in-flight item. Items published
// too recently are placed on IMPORT_HOLD with a timer to re-evaluate them.
//
// Note: This function will take ownership of the mutex, and releases it when returning
func (service *ingestService) queueNewItems(f *Feed, parsedItems []*gofeed.Item) {
	service.Lock()
	defer service.Unlock()

	knownGuids, err := service.dataStore.ListReleaseGuids()
	if err != nil {
		log.Emit(logger.ERROR, "Failed to list known release GUIDs: %s\n", err.Error())
		return
	}

	knownLookup := make(map[string]bool, len(knownGuids))
	for _, guid := range knownGuids {
		knownLookup[guid] = true
	}
	for _, item := range service.items {
		knownLookup[item.Guid] = true
	}

	rules := f.Rules()
	minPublishAge := service.requiredPublishAgeDuration()
	dirty := false
	for _, parsed := range parsedItems {
		sample := ItemToSample(parsed)
		guid := itemGuid(parsed)
		if rules.Guid != "" {
			if extracted, ok := extract.Try(sample, rules.Guid); ok && extracted != "" {
				guid = extracted
			}
		}
		if guid == "" || knownLookup[guid] {
			continue
		}
		knownLookup[guid] = true

		itemID := uuid.New()
		ingestItem := &IngestItem{
			ID:          itemID,
			FeedID:      f.ID,
			Guid:        guid,
			Sample:      sample,
			PublishedAt: parsed.PublishedParsed,
			State:       IDLE,
		}

		if age := ingestItem.publishedAge(); age != nil && *age < minPublishAge {
			ingestItem.State = IMPORT_HOLD
			service.scheduleImportHoldTimer(itemID, minPublishAge-*age)
		} else {
			dirty = true
		}

		service.items = append(service.items, ingestItem)
	}

	if dirty {
		service.wakeupWorkerPool()
	}
}

// RemoveIngest looks for an item with the ID provided in the services state,
// and removes it if it's found.
// This method *fails* if the item is currently 'INGESTING' as interrupting
// the ingestion is not possible.
// This method does not error if the itemID does not exist.
//
// Note: This function takes ownership of the mutex and releases it on return
func (service *ingestService) RemoveIngest(itemID uuid.UUID) error {
	service.Lock()
	defer service.Unlock()

	return service.removeIngest(itemID)
}

func (service *ingestService) removeIngest(itemID uuid.UUID) error {
	for k, v := range service.items {
		if v.ID == itemID {
			if v.State == INGESTING {
				return fmt.Errorf("cannot remove item %v as a worker is currently ingesting it", itemID)
			}

			service.clearImportHoldTimer(itemID)
			service.items = append(service.items[:k], service.items[k+1:]...)
			return nil
		}
	}

	return nil
}

// GetIngest accepts the ID of an ingest item and attempts to find it in the
// services queue. If it cannot be found, nil is returned.
func (service *ingestService) GetIngest(itemID uuid.UUID) *IngestItem {
	service.Lock()
	defer service.Unlock()

	return service.getIngest(itemID)
}

func (service *ingestService) getIngest(itemID uuid.UUID) *IngestItem {
	for _, item := range service.items {
		if item.ID == itemID {
			return item
		}
	}

	return nil
}

// GetAllIngests returns all the IngestItems being processed by this service.
func (service *ingestService) GetAllIngests() []*IngestItem {
	service.Lock()
	defer service.Unlock()

	items := make([]*IngestItem, len(service.items))
	copy(items, service.items)
	return items
}

// ResolveTroubledIngest generates a resolution for the trouble on the item
// specified and applies it: aborting removes the item, retrying (optionally
// with an operator-supplied annotation) re-queues it for the worker pool.
//
// Note: This function takes ownership of the mutex and releases it on return
func (service *ingestService) ResolveTroubledIngest(itemID uuid.UUID, method ResolutionType, context map[string]string) error {
	service.Lock()
	defer service.Unlock()

	item := service.getIngest(itemID)
	if item == nil {
		return ErrIngestNotFound
	}
	if item.State != TROUBLED || item.Trouble == nil {
		return ErrNoTrouble
	}

	resolution, err := item.Trouble.GenerateResolution(method, context)
	if err != nil {
		return err
	}

	switch resolution := resolution.(type) {
	case *AbortResolution:
		return service.removeIngest(itemID)
	case *RetryResolution:
	case *AnnotationResolution:
		item.OverrideAnnotation = &resolution.annotation
	default:
		return ErrResolutionIncompatible
	}

	item.Trouble = nil
	item.State = IDLE
	service.wakeupWorkerPool()
	service.eventBus.Dispatch(event.IngestUpdateEvent, item.ID)

	return nil
}

// evaluateItemHold accepts the ID of an item that is on IMPORT_HOLD and
// checks it's published age to see if the item can be moved on to the 'IDLE'
// state. If the age requirement is still unmet, a new timer is scheduled to
// re-evaluate the hold.
//
// Note: this function takes ownership of the mutex, and releases it when returning
func (service *ingestService) evaluateItemHold(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	item := service.getIngest(id)
	if item == nil || item.State != IMPORT_HOLD {
		return
	}

	threshold := service.requiredPublishAgeDuration()
	if age := item.publishedAge(); age != nil && *age < threshold {
		service.scheduleImportHoldTimer(id, threshold-*age)
		return
	}

	item.State = IDLE
	service.wakeupWorkerPool()
}

// scheduleImportHoldTimer will call evaluateItemHold for the item provided
// after the delay duration specified has elapsed. Any existing import hold
// timer for the item specified will be *cancelled* before the new timer is
// created.
func (service *ingestService) scheduleImportHoldTimer(id uuid.UUID, delay time.Duration) {
	service.clearImportHoldTimer(id)
	service.importHoldTimers[id] = time.AfterFunc(delay, func() {
		service.evaluateItemHold(id)
	})
}

func (service *ingestService) clearImportHoldTimer(id uuid.UUID) {
	if timer, ok := service.importHoldTimers[id]; ok {
		timer.Stop()
		delete(service.importHoldTimers, id)
	}
}

func (service *ingestService) clearAllImportHoldTimers() {
	for key, timer := range service.importHoldTimers {
		timer.Stop()
		delete(service.importHoldTimers, key)
	}
}

// claimIdleItem will try and find an IDLE item in the ingest service, and set
// it's state to 'INGESTING' to prevent another worker from claiming it once
// the mutex lock is released. The owning feed's extraction rules are resolved
// while the lock is held so the worker can run without it.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (service *ingestService) claimIdleItem() (*IngestItem, ExtractionRules) {
	service.Lock()
	defer service.Unlock()

	for _, item := range service.items {
		if item.State == IDLE {
			item.State = INGESTING
			return item, service.rulesForFeed(item.FeedID)
		}
	}

	return nil, ExtractionRules{}
}

// rulesForFeed fetches the current extraction rules for the feed specified.
// Missing feeds (deleted since the item was queued) resolve to the empty rule
// set, which falls back to the items standard fields.
func (service *ingestService) rulesForFeed(feedID uuid.UUID) ExtractionRules {
	feeds, err := service.dataStore.ListFeeds()
	if err != nil {
		log.Emit(logger.WARNING, "Failed to resolve extraction rules for feed %s: %s\n", feedID, err.Error())
		return ExtractionRules{}
	}

	for _, f := range feeds {
		if f.ID == feedID {
			return f.Rules()
		}
	}

	return ExtractionRules{}
}

func (service *ingestService) requiredPublishAgeDuration() time.Duration {
	return time.Duration(service.config.RequiredPublishAgeSeconds) * time.Second
}

func (service *ingestService) wakeupWorkerPool() {
	service.workerPool.WakeupWorkers()
}

// itemGuid resolves the deduplication key for a parsed item, preferring the
// feed-provided GUID and falling back to the link.
func itemGuid(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}

	return item.Link
}
