package api

import (
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/api/ingests"
	"github.com/kohaven/medley/internal/http/websocket"
)

const (
	TitleIngestUpdate       = "INGEST_UPDATE"
	TitleFeedUpdate         = "FEED_UPDATE"
	TitleCatalogUpdate      = "CATALOG_UPDATE"
	TitleNewRelease         = "NEW_RELEASE"
	TitleCorrectionUpdate   = "CORRECTION_UPDATE"
	TitleCorrectionResolved = "CORRECTION_RESOLVED"
)

type (
	IngestUpdate struct {
		IngestID uuid.UUID          `json:"ingest_id"`
		Ingest   *ingests.IngestDto `json:"ingest"`
	}

	broadcaster struct {
		socketHub     *websocket.SocketHub
		ingestService ingests.IngestService
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, ingestService ingests.IngestService) *broadcaster {
	return &broadcaster{socketHub: socketHub, ingestService: ingestService}
}

// BroadcastIngestUpdate pushes the current state of the ingest item to all
// connected clients. A nil item (completed items are eventually evicted from
// the queue) broadcasts the ID alone so the UI can drop it.
func (hub *broadcaster) BroadcastIngestUpdate(id uuid.UUID) error {
	update := IngestUpdate{IngestID: id}
	if item := hub.ingestService.GetIngest(id); item != nil {
		update.Ingest = ingests.NewDto(item)
	}

	hub.broadcast(TitleIngestUpdate, update)
	return nil
}

func (hub *broadcaster) BroadcastFeedUpdate(id uuid.UUID) error {
	hub.broadcast(TitleFeedUpdate, map[string]any{"feed_id": id})
	return nil
}

func (hub *broadcaster) BroadcastCatalogUpdate(id uuid.UUID) error {
	hub.broadcast(TitleCatalogUpdate, map[string]any{"entity_id": id})
	return nil
}

func (hub *broadcaster) BroadcastNewRelease(id uuid.UUID) error {
	hub.broadcast(TitleNewRelease, map[string]any{"release_id": id})
	return nil
}

func (hub *broadcaster) BroadcastCorrectionUpdate(id uuid.UUID) error {
	hub.broadcast(TitleCorrectionUpdate, map[string]any{"correction_id": id})
	return nil
}

func (hub *broadcaster) BroadcastCorrectionResolved(id uuid.UUID) error {
	hub.broadcast(TitleCorrectionResolved, map[string]any{"correction_id": id})
	return nil
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.Message{
		Title: title,
		Body:  map[string]any{"arguments": update},
		Type:  websocket.Update,
	})
}
