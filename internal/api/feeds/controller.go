package feeds

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/feed"
	"github.com/kohaven/medley/internal/feed/extract"
	"github.com/labstack/echo/v4"
)

type (
	CreateRequest struct {
		Name                string         `json:"name" validate:"required"`
		URL                 string         `json:"url" validate:"required,url"`
		PollIntervalSeconds int            `json:"poll_interval_seconds" validate:"required,min=30"`
		Enabled             *bool          `json:"enabled"`
		ExtractionRules     map[string]any `json:"extraction_rules"`
	}

	UpdateRequest struct {
		Name                *string        `json:"name"`
		URL                 *string        `json:"url" validate:"omitempty,url"`
		PollIntervalSeconds *int           `json:"poll_interval_seconds" validate:"omitempty,min=30"`
		Enabled             *bool          `json:"enabled"`
		ExtractionRules     map[string]any `json:"extraction_rules"`
	}

	// TestExtractionRequest drives the interactive extraction tester: the
	// path expression is evaluated against the supplied sample (or the
	// feeds most recently cached item when omitted), and the result is
	// optionally matched against a regular expression.
	TestExtractionRequest struct {
		Path    string         `json:"path" validate:"required"`
		Sample  map[string]any `json:"sample"`
		Pattern string         `json:"pattern"`
	}

	TestExtractionResponse struct {
		Result   string   `json:"result"`
		Matched  *bool    `json:"matched,omitempty"`
		Captures []string `json:"captures,omitempty"`
	}

	Dto struct {
		ID                  uuid.UUID            `json:"id"`
		Name                string               `json:"name"`
		URL                 string               `json:"url"`
		PollIntervalSeconds int                  `json:"poll_interval_seconds"`
		Enabled             bool                 `json:"enabled"`
		ExtractionRules     feed.ExtractionRules `json:"extraction_rules"`
		LatestSample        map[string]any       `json:"latest_sample"`
		LastPolledAt        *time.Time           `json:"last_polled_at"`
		CreatedAt           time.Time            `json:"created_at"`
		UpdatedAt           time.Time            `json:"updated_at"`
	}

	Store interface {
		ListFeeds() ([]*feed.Feed, error)
		GetFeed(feedID uuid.UUID) (*feed.Feed, error)
		SaveFeed(f *feed.Feed) error
		DeleteFeed(feedID uuid.UUID) error
	}

	Service interface {
		PollFeed(ctx context.Context, f *feed.Feed) error
	}

	Controller struct {
		validate *validator.Validate
		store    Store
		service  Service
	}
)

func New(validate *validator.Validate, store Store, service Service) *Controller {
	return &Controller{validate: validate, store: store, service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.PATCH("/:id/", controller.update)
	eg.DELETE("/:id/", controller.delete)
	eg.POST("/:id/poll/", controller.poll)
	eg.POST("/:id/test-extraction/", controller.testExtraction)
}

func (controller *Controller) list(ec echo.Context) error {
	feeds, err := controller.store.ListFeeds()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	dtos := make([]*Dto, len(feeds))
	for k, v := range feeds {
		dtos[k] = NewDto(v)
	}

	return ec.JSON(http.StatusOK, dtos)
}

func (controller *Controller) create(ec echo.Context) error {
	var request CreateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rules, err := feed.DecodeExtractionRules(request.ExtractionRules)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	enabled := true
	if request.Enabled != nil {
		enabled = *request.Enabled
	}

	newFeed := &feed.Feed{
		ID:                  uuid.New(),
		Name:                request.Name,
		URL:                 request.URL,
		PollIntervalSeconds: request.PollIntervalSeconds,
		Enabled:             enabled,
	}
	newFeed.SetRules(rules)

	if err := controller.store.SaveFeed(newFeed); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusCreated, NewDto(newFeed))
}

func (controller *Controller) get(ec echo.Context) error {
	existing, err := controller.feedFromPath(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewDto(existing))
}

func (controller *Controller) update(ec echo.Context) error {
	existing, err := controller.feedFromPath(ec)
	if err != nil {
		return err
	}

	var request UpdateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if request.Name != nil {
		existing.Name = *request.Name
	}
	if request.URL != nil {
		existing.URL = *request.URL
	}
	if request.PollIntervalSeconds != nil {
		existing.PollIntervalSeconds = *request.PollIntervalSeconds
	}
	if request.Enabled != nil {
		existing.Enabled = *request.Enabled
	}
	if request.ExtractionRules != nil {
		rules, err := feed.DecodeExtractionRules(request.ExtractionRules)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		existing.SetRules(rules)
	}

	if err := controller.store.SaveFeed(existing); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, NewDto(existing))
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Feed ID is not a valid UUID")
	}

	if err := controller.store.DeleteFeed(id); err != nil {
		if err == feed.ErrFeedNotFound {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

// poll forces an immediate fetch of the feed, bypassing its poll interval.
func (controller *Controller) poll(ec echo.Context) error {
	existing, err := controller.feedFromPath(ec)
	if err != nil {
		return err
	}

	if err := controller.service.PollFeed(ec.Request().Context(), existing); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return ec.NoContent(http.StatusOK)
}

// testExtraction evaluates a path expression against a sample item and
// returns whatever the extractor produced - value or diagnostic - verbatim.
// An optional regular expression is then tested against the result, which
// lets operators verify a post-processing pattern in the same round trip.
func (controller *Controller) testExtraction(ec echo.Context) error {
	existing, err := controller.feedFromPath(ec)
	if err != nil {
		return err
	}

	var request TestExtractionRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sample := request.Sample
	if sample == nil {
		if cached := existing.LatestSample.Get(); cached != nil {
			sample = *cached
		}
	}

	// A nil sample resolves to the extractor's "No data available" guard,
	// which is exactly what the tester should display in that case.
	var sampleValue any
	if sample != nil {
		sampleValue = map[string]any(sample)
	}

	response := TestExtractionResponse{Result: extract.Extract(sampleValue, request.Path)}

	if request.Pattern != "" {
		matcher, err := regexp.Compile(request.Pattern)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("pattern is not a valid regular expression: %v", err))
		}

		matched := matcher.MatchString(response.Result)
		response.Matched = &matched
		if groups := matcher.FindStringSubmatch(response.Result); groups != nil {
			response.Captures = groups
		}
	}

	return ec.JSON(http.StatusOK, response)
}

func (controller *Controller) feedFromPath(ec echo.Context) (*feed.Feed, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Feed ID is not a valid UUID")
	}

	existing, err := controller.store.GetFeed(id)
	if err != nil {
		if err == feed.ErrFeedNotFound {
			return nil, echo.NewHTTPError(http.StatusNotFound)
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return existing, nil
}

// NewDto creates a Dto using the Feed model.
func NewDto(f *feed.Feed) *Dto {
	dto := &Dto{
		ID:                  f.ID,
		Name:                f.Name,
		URL:                 f.URL,
		PollIntervalSeconds: f.PollIntervalSeconds,
		Enabled:             f.Enabled,
		ExtractionRules:     f.Rules(),
		LastPolledAt:        f.LastPolledAt,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}

	if sample := f.LatestSample.Get(); sample != nil {
		dto.LatestSample = *sample
	}

	return dto
}
