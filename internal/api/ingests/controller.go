package ingests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/feed"
	"github.com/labstack/echo/v4"
)

type (
	ResolutionTypeWrapper struct{ Value feed.ResolutionType }
	ResolveTroubleRequest struct {
		Method  *ResolutionTypeWrapper `json:"method"`
		Context map[string]string      `json:"context"`
	}

	// IngestDto is the response used by endpoints that return the items
	// being ingested (e.g., list, get)
	IngestDto struct {
		ID          uuid.UUID      `json:"id"`
		FeedID      uuid.UUID      `json:"feed_id"`
		Guid        string         `json:"guid"`
		State       IngestStateDto `json:"state"`
		Trouble     *TroubleDto    `json:"trouble"`
		PublishedAt *time.Time     `json:"published_at"`
	}

	IngestStateDto string
	TroubleTypeDto string

	TroubleDto struct {
		Type                   TroubleTypeDto          `json:"type"`
		Message                string                  `json:"message"`
		AllowedResolutionTypes []ResolutionTypeWrapper `json:"allowed_resolution_types"`
	}

	IngestService interface {
		GetAllIngests() []*feed.IngestItem
		GetIngest(uuid.UUID) *feed.IngestItem
		RemoveIngest(uuid.UUID) error
		PollAllFeeds()
		ResolveTroubledIngest(itemID uuid.UUID, method feed.ResolutionType, context map[string]string) error
	}

	// Controller is the struct which is responsible for defining the routes
	// for this controller. Additionally, it holds the reference to the
	// service used to retrieve information about in-flight ingestions.
	Controller struct {
		service IngestService
	}
)

const (
	IDLE        IngestStateDto = "IDLE"
	IMPORT_HOLD IngestStateDto = "IMPORT_HOLD"
	INGESTING   IngestStateDto = "INGESTING"
	TROUBLED    IngestStateDto = "TROUBLED"
	COMPLETE    IngestStateDto = "COMPLETE"

	FETCH_FAILURE      TroubleTypeDto = "FETCH_FAILURE"
	EXTRACTION_FAILURE TroubleTypeDto = "EXTRACTION_FAILURE"
	ANNOTATION_FAILURE TroubleTypeDto = "ANNOTATION_FAILURE"
	UNKNOWN_FAILURE    TroubleTypeDto = "UNKNOWN_FAILURE"
)

func New(serv IngestService) *Controller {
	return &Controller{service: serv}
}

// SetRoutes accepts the Echo group for the ingest endpoints and sets the
// routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/poll/", controller.performPoll)
	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)
	eg.POST("/:id/trouble-resolution/", controller.postTroubleResolution)
}

// list returns all the ingests - represented as DTOs - from the underlying service.
func (controller *Controller) list(ec echo.Context) error {
	items := controller.service.GetAllIngests()
	dtos := make([]*IngestDto, len(items))
	for k, v := range items {
		dtos[k] = NewDto(v)
	}

	return ec.JSON(http.StatusOK, dtos)
}

// get uses the 'id' path param from the context and retrieves the ingest
// from the underlying service. If found, a DTO representing the ingest is returned.
func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ingest ID is not a valid UUID")
	}

	item := controller.service.GetIngest(id)
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	return ec.JSON(http.StatusOK, NewDto(item))
}

// delete uses the 'id' path param from the context and retrieves the ingest
// from the underlying service. If found, the ingest is cancelled.
func (controller *Controller) delete(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ingest ID is not a valid UUID")
	}

	if err := controller.service.RemoveIngest(id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

// postTroubleResolution uses the 'id' path param from the context and
// retrieves the ingest from the underlying service. If found, then an
// attempt to resolve the trouble will be made.
func (controller *Controller) postTroubleResolution(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ingest ID is not a valid UUID")
	}

	var request ResolveTroubleRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	} else if request.Method == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON body missing mandatory 'method' field")
	}

	if err := controller.service.ResolveTroubledIngest(id, request.Method.Value, request.Context); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) performPoll(ec echo.Context) error {
	controller.service.PollAllFeeds()

	return ec.NoContent(http.StatusOK)
}

func (wrapper *ResolutionTypeWrapper) UnmarshalJSON(data []byte) error {
	var strValue string
	if err := json.Unmarshal(data, &strValue); err != nil {
		return err
	}

	switch strValue {
	case "abort":
		wrapper.Value = feed.ABORT
	case "specify_annotation":
		wrapper.Value = feed.SPECIFY_ANNOTATION
	case "retry":
		wrapper.Value = feed.RETRY
	default:
		return fmt.Errorf("invalid enum value: %s for resolution method", strValue)
	}

	return nil
}

func (wrapper *ResolutionTypeWrapper) MarshalJSON() ([]byte, error) {
	switch wrapper.Value {
	case feed.ABORT:
		return json.Marshal("abort")
	case feed.SPECIFY_ANNOTATION:
		return json.Marshal("specify_annotation")
	case feed.RETRY:
		return json.Marshal("retry")
	}

	return nil, fmt.Errorf("invalid enum value: %v for resolution method has no known marshalling", wrapper.Value)
}

// NewDto creates an IngestDto using the IngestItem model.
func NewDto(item *feed.IngestItem) *IngestDto {
	var trbl *TroubleDto = nil
	if item.Trouble != nil {
		trbl = &TroubleDto{
			Type:                   TroubleTypeModelToDto(item.Trouble.Type()),
			Message:                item.Trouble.Error(),
			AllowedResolutionTypes: ExtractTroubleResolutionTypes(item.Trouble),
		}
	}

	return &IngestDto{
		ID:          item.ID,
		FeedID:      item.FeedID,
		Guid:        item.Guid,
		State:       IngestStateModelToDto(item.State),
		Trouble:     trbl,
		PublishedAt: item.PublishedAt,
	}
}

func ExtractTroubleResolutionTypes(trouble *feed.Trouble) []ResolutionTypeWrapper {
	modelResTypes := trouble.AllowedResolutionTypes()
	dtoResTypes := make([]ResolutionTypeWrapper, len(modelResTypes))
	for k, v := range modelResTypes {
		dtoResTypes[k] = ResolutionTypeWrapper{Value: v}
	}

	return dtoResTypes
}

func TroubleTypeModelToDto(troubleType feed.TroubleType) TroubleTypeDto {
	switch troubleType {
	case feed.FETCH_FAILURE:
		return FETCH_FAILURE
	case feed.EXTRACTION_FAILURE:
		return EXTRACTION_FAILURE
	case feed.ANNOTATION_FAILURE:
		return ANNOTATION_FAILURE
	case feed.GENERIC_FAILURE:
		return UNKNOWN_FAILURE
	}

	panic(fmt.Sprintf("ingest trouble type %s is not recognized by API layer, DTO cannot be created. Please report this error.", troubleType))
}

func IngestStateModelToDto(modelType feed.IngestItemState) IngestStateDto {
	switch modelType {
	case feed.IDLE:
		return IDLE
	case feed.IMPORT_HOLD:
		return IMPORT_HOLD
	case feed.INGESTING:
		return INGESTING
	case feed.TROUBLED:
		return TROUBLED
	case feed.COMPLETE:
		return COMPLETE
	}

	panic(fmt.Sprintf("ingest state %s is not recognized by API layer, DTO cannot be created. Please report this error.", modelType))
}
