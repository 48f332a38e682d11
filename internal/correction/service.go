package correction

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/internal/event"
	"github.com/kohaven/medley/pkg/logger"
)

var log = logger.Get("CorrectionServ")

type catalogStore interface {
	UpdateField(db database.Queryable, kind catalog.EntityKind, id uuid.UUID, field string, value string) error
}

// Service owns the moderation workflow for crowd-sourced corrections.
// Approval applies the proposed value to the catalog row inside the same
// transaction that resolves the correction, so a failed catalog update
// leaves the correction PENDING.
type Service struct {
	db       database.Manager
	store    *Store
	catalog  catalogStore
	eventBus event.EventCoordinator
}

func NewService(db database.Manager, catalogStore catalogStore, eventBus event.EventCoordinator) *Service {
	return &Service{
		db:       db,
		store:    &Store{},
		catalog:  catalogStore,
		eventBus: eventBus,
	}
}

// Submit validates and stores a new PENDING correction.
func (service *Service) Submit(correction *Correction) error {
	if !catalog.IsCorrectableField(correction.EntityKind, correction.Field) {
		return fmt.Errorf("%w: %q on %s", catalog.ErrIllegalField, correction.Field, correction.EntityKind)
	}

	if correction.ID == uuid.Nil {
		correction.ID = uuid.New()
	}

	if err := service.store.Save(service.db.GetSqlxDb(), correction); err != nil {
		return err
	}

	log.Emit(logger.NEW, "Correction %s submitted against %s %s (%s)\n",
		correction.ID, correction.EntityKind, correction.EntityID, correction.Field)
	service.eventBus.Dispatch(event.CorrectionUpdateEvent, correction.ID)

	return nil
}

func (service *Service) Get(id uuid.UUID) (*Correction, error) {
	return service.store.Get(service.db.GetSqlxDb(), id)
}

func (service *Service) List(state *CorrectionState) ([]*Correction, error) {
	return service.store.List(service.db.GetSqlxDb(), state)
}

// Approve resolves the correction and applies its proposed value to the
// catalog. Both writes happen in one transaction.
func (service *Service) Approve(id uuid.UUID, moderatorNote *string) (*Correction, error) {
	var approved *Correction
	err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		resolved, err := service.store.Resolve(tx, id, Approved, moderatorNote)
		if err != nil {
			return err
		}

		if err := service.catalog.UpdateField(tx, resolved.EntityKind, resolved.EntityID, resolved.Field, resolved.ProposedValue); err != nil {
			return fmt.Errorf("failed to apply correction %s: %w", id, err)
		}

		approved = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Emit(logger.SUCCESS, "Correction %s approved and applied\n", id)
	service.eventBus.Dispatch(event.CorrectionResolvedEvent, id)
	service.eventBus.Dispatch(event.CatalogUpdateEvent, approved.EntityID)

	return approved, nil
}

// Reject resolves the correction without touching the catalog.
func (service *Service) Reject(id uuid.UUID, moderatorNote *string) (*Correction, error) {
	rejected, err := service.store.Resolve(service.db.GetSqlxDb(), id, Rejected, moderatorNote)
	if err != nil {
		return nil, err
	}

	log.Emit(logger.INFO, "Correction %s rejected\n", id)
	service.eventBus.Dispatch(event.CorrectionResolvedEvent, id)

	return rejected, nil
}
