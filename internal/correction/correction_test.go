package correction_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/correction"
	"github.com/kohaven/medley/internal/event"
	"github.com/stretchr/testify/assert"
)

func Test_Submit_RejectsIllegalFields(t *testing.T) {
	service := correction.NewService(nil, catalog.NewStore(), event.New())

	err := service.Submit(&correction.Correction{
		EntityKind:    catalog.SeriesKind,
		EntityID:      uuid.New(),
		Field:         "guid",
		CurrentValue:  "a",
		ProposedValue: "b",
	})
	assert.ErrorIs(t, err, catalog.ErrIllegalField)

	err = service.Submit(&correction.Correction{
		EntityKind:    catalog.EntityKind("playlist"),
		EntityID:      uuid.New(),
		Field:         "title",
		CurrentValue:  "a",
		ProposedValue: "b",
	})
	assert.ErrorIs(t, err, catalog.ErrIllegalField)
}

func Test_Resolved(t *testing.T) {
	pending := correction.Correction{State: correction.Pending}
	assert.False(t, pending.Resolved())

	for _, state := range []correction.CorrectionState{correction.Approved, correction.Rejected} {
		resolved := correction.Correction{State: state}
		assert.True(t, resolved.Resolved())
	}
}
