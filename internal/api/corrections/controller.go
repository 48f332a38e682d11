package corrections

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/correction"
	"github.com/labstack/echo/v4"
)

type (
	SubmitRequest struct {
		EntityKind    string  `json:"entity_kind" validate:"required,oneof=series season episode movie release"`
		EntityID      string  `json:"entity_id" validate:"required,uuid"`
		Field         string  `json:"field" validate:"required"`
		CurrentValue  string  `json:"current_value" validate:"required"`
		ProposedValue string  `json:"proposed_value" validate:"required"`
		SubmitterNote *string `json:"submitter_note"`
	}

	ModerateRequest struct {
		ModeratorNote *string `json:"moderator_note"`
	}

	Dto struct {
		ID            uuid.UUID `json:"id"`
		EntityKind    string    `json:"entity_kind"`
		EntityID      uuid.UUID `json:"entity_id"`
		Field         string    `json:"field"`
		CurrentValue  string    `json:"current_value"`
		ProposedValue string    `json:"proposed_value"`
		SubmitterNote *string   `json:"submitter_note"`
		State         string    `json:"state"`
		ModeratorNote *string   `json:"moderator_note"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	Service interface {
		Submit(c *correction.Correction) error
		Get(id uuid.UUID) (*correction.Correction, error)
		List(state *correction.CorrectionState) ([]*correction.Correction, error)
		Approve(id uuid.UUID, moderatorNote *string) (*correction.Correction, error)
		Reject(id uuid.UUID, moderatorNote *string) (*correction.Correction, error)
	}

	Controller struct {
		validate *validator.Validate
		service  Service
	}
)

var stateFilters = map[string]correction.CorrectionState{
	"pending":  correction.Pending,
	"approved": correction.Approved,
	"rejected": correction.Rejected,
}

func New(validate *validator.Validate, service Service) *Controller {
	return &Controller{validate: validate, service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/", controller.submit)
	eg.GET("/:id/", controller.get)
	eg.POST("/:id/approve/", controller.approve)
	eg.POST("/:id/reject/", controller.reject)
}

// list returns all corrections, optionally filtered via the 'state' query
// param (pending/approved/rejected).
func (controller *Controller) list(ec echo.Context) error {
	var state *correction.CorrectionState
	if raw := ec.QueryParam("state"); raw != "" {
		filter, ok := stateFilters[raw]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("state filter %q is not recognized", raw))
		}
		state = &filter
	}

	corrections, err := controller.service.List(state)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	dtos := make([]*Dto, len(corrections))
	for k, v := range corrections {
		dtos[k] = NewDto(v)
	}

	return ec.JSON(http.StatusOK, dtos)
}

func (controller *Controller) submit(ec echo.Context) error {
	var request SubmitRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	submission := correction.Correction{
		EntityKind:    catalog.EntityKind(request.EntityKind),
		EntityID:      uuid.MustParse(request.EntityID),
		Field:         request.Field,
		CurrentValue:  request.CurrentValue,
		ProposedValue: request.ProposedValue,
		SubmitterNote: request.SubmitterNote,
	}

	if err := controller.service.Submit(&submission); err != nil {
		if errors.Is(err, catalog.ErrIllegalField) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusCreated, NewDto(&submission))
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Correction ID is not a valid UUID")
	}

	found, err := controller.service.Get(id)
	if err != nil {
		if errors.Is(err, correction.ErrCorrectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, NewDto(found))
}

func (controller *Controller) approve(ec echo.Context) error {
	return controller.moderate(ec, controller.service.Approve)
}

func (controller *Controller) reject(ec echo.Context) error {
	return controller.moderate(ec, controller.service.Reject)
}

func (controller *Controller) moderate(ec echo.Context, resolve func(uuid.UUID, *string) (*correction.Correction, error)) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Correction ID is not a valid UUID")
	}

	var request ModerateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}

	resolved, err := resolve(id, request.ModeratorNote)
	if err != nil {
		switch {
		case errors.Is(err, correction.ErrCorrectionNotFound):
			return echo.NewHTTPError(http.StatusNotFound)
		case errors.Is(err, correction.ErrAlreadyResolved):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return ec.JSON(http.StatusOK, NewDto(resolved))
}

// NewDto creates a Dto using the Correction model.
func NewDto(c *correction.Correction) *Dto {
	return &Dto{
		ID:            c.ID,
		EntityKind:    string(c.EntityKind),
		EntityID:      c.EntityID,
		Field:         c.Field,
		CurrentValue:  c.CurrentValue,
		ProposedValue: c.ProposedValue,
		SubmitterNote: c.SubmitterNote,
		State:         string(c.State),
		ModeratorNote: c.ModeratorNote,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
