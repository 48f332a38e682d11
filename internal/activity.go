package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/event"
	"github.com/kohaven/medley/pkg/logger"
)

const (
	DEBOUNCE_DURATION  time.Duration = time.Second * 2
	MAX_TIMER_DURATION time.Duration = time.Second * 5
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastIngestUpdate(uuid.UUID) error
		BroadcastFeedUpdate(uuid.UUID) error
		BroadcastCatalogUpdate(uuid.UUID) error
		BroadcastNewRelease(uuid.UUID) error
		BroadcastCorrectionUpdate(uuid.UUID) error
		BroadcastCorrectionResolved(uuid.UUID) error
	}

	eventKey struct {
		ev event.Event
		id uuid.UUID
	}

	// activityService subscribes to the event bus and relays state changes to
	// connected websocket clients. Broadcasts are debounced per resource so a
	// burst of updates to one item becomes a single message, with a max timer
	// bounding how stale a client view can get during a sustained burst.
	activityService struct {
		*sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		debounceTimers map[eventKey]*time.Timer
		maxTimers      map[eventKey]*time.Timer
	}
)

func newActivityService(broadcaster broadcaster, event event.EventHandler) *activityService {
	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		eventBus:       event,
		debounceTimers: make(map[eventKey]*time.Timer),
		maxTimers:      make(map[eventKey]*time.Timer),
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan,
		event.IngestUpdateEvent, event.IngestCompleteEvent, event.FeedUpdateEvent,
		event.NewReleaseEvent, event.CatalogUpdateEvent,
		event.CorrectionUpdateEvent, event.CorrectionResolvedEvent)

	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	resourceID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	resourceKey := eventKey{id: resourceID, ev: ev.Event}

	switch ev.Event {
	case event.IngestUpdateEvent:
		fallthrough
	case event.IngestCompleteEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastIngestUpdate)
	case event.FeedUpdateEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastFeedUpdate)
	case event.NewReleaseEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastNewRelease)
	case event.CatalogUpdateEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastCatalogUpdate)
	case event.CorrectionUpdateEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastCorrectionUpdate)
	case event.CorrectionResolvedEvent:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastCorrectionResolved)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(resourceKey, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
	}
	service.debounceTimers[resourceKey] = time.AfterFunc(DEBOUNCE_DURATION, broadcaster)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[resourceKey]; !ok {
		service.maxTimers[resourceKey] = time.AfterFunc(MAX_TIMER_DURATION, broadcaster)
	}
}

func (service *activityService) broadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
		delete(service.debounceTimers, resourceKey)
	}

	if t, ok := service.maxTimers[resourceKey]; ok {
		t.Stop()
		delete(service.maxTimers, resourceKey)
	}

	if err := handler(resourceKey.id); err != nil {
		log.Emit(logger.ERROR, "Broadcast for %v failed: %v\n", resourceKey, err)
	}
}
