package correction

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct{}

func (store *Store) Save(db database.Queryable, correction *Correction) error {
	var saved Correction
	if err := db.Get(&saved, `
		INSERT INTO corrections(id, entity_kind, entity_id, field, current_value, proposed_value, submitter_note, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, current_timestamp, current_timestamp)
		RETURNING *`,
		correction.ID, correction.EntityKind, correction.EntityID, correction.Field,
		correction.CurrentValue, correction.ProposedValue, correction.SubmitterNote, Pending,
	); err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}

	*correction = saved
	return nil
}

func (store *Store) Get(db database.Queryable, id uuid.UUID) (*Correction, error) {
	query, args, err := psql.Select("*").From("corrections").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build correction query: %w", err)
	}

	var correction Correction
	if err := db.Get(&correction, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCorrectionNotFound
		}
		return nil, fmt.Errorf("failed to fetch correction %s: %w", id, err)
	}

	return &correction, nil
}

// List returns corrections ordered oldest first, optionally filtered to a
// single state.
func (store *Store) List(db database.Queryable, state *CorrectionState) ([]*Correction, error) {
	builder := psql.Select("*").From("corrections").OrderBy("created_at ASC")
	if state != nil {
		builder = builder.Where(sq.Eq{"state": *state})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build correction list query: %w", err)
	}

	var corrections []*Correction
	if err := db.Select(&corrections, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}

	return corrections, nil
}

// Resolve transitions a PENDING correction to the given resolved state. The
// state filter in the UPDATE guards against concurrent moderation; losing
// that race surfaces as ErrAlreadyResolved.
func (store *Store) Resolve(db database.Queryable, id uuid.UUID, state CorrectionState, moderatorNote *string) (*Correction, error) {
	var resolved Correction
	if err := db.Get(&resolved, `
		UPDATE corrections
		SET state = $2, moderator_note = $3, updated_at = current_timestamp
		WHERE id = $1 AND state = $4
		RETURNING *`,
		id, state, moderatorNote, Pending,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := store.Get(db, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrAlreadyResolved
		}
		return nil, fmt.Errorf("failed to resolve correction %s: %w", id, err)
	}

	return &resolved, nil
}
