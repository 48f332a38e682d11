package correction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
)

type (
	CorrectionState string

	// Correction is a crowd-sourced proposal to change a single field of a
	// catalog entity. Corrections start PENDING and are either approved
	// (the proposed value is applied to the catalog) or rejected by a
	// moderator; resolved corrections are immutable.
	Correction struct {
		ID            uuid.UUID          `db:"id" json:"id"`
		EntityKind    catalog.EntityKind `db:"entity_kind" json:"entity_kind"`
		EntityID      uuid.UUID          `db:"entity_id" json:"entity_id"`
		Field         string             `db:"field" json:"field"`
		CurrentValue  string             `db:"current_value" json:"current_value"`
		ProposedValue string             `db:"proposed_value" json:"proposed_value"`
		SubmitterNote *string            `db:"submitter_note" json:"submitter_note"`
		State         CorrectionState    `db:"state" json:"state"`
		ModeratorNote *string            `db:"moderator_note" json:"moderator_note"`
		CreatedAt     time.Time          `db:"created_at" json:"created_at"`
		UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
	}
)

const (
	Pending  CorrectionState = "PENDING"
	Approved CorrectionState = "APPROVED"
	Rejected CorrectionState = "REJECTED"
)

var (
	ErrCorrectionNotFound = errors.New("correction not found")
	ErrAlreadyResolved    = errors.New("correction has already been resolved")
)

// Resolved reports whether the correction has left the PENDING state.
func (correction *Correction) Resolved() bool {
	return correction.State != Pending
}
