package annotations

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/labstack/echo/v4"
)

type (
	// PutRequest replaces a release's annotation wholesale. Season and
	// episode numbers are mandatory for episodic releases and ignored
	// otherwise.
	PutRequest struct {
		Title         string `json:"title" validate:"required"`
		Episodic      bool   `json:"episodic"`
		SeasonNumber  *int   `json:"season_number" validate:"required_if=Episodic true,omitempty,min=0"`
		EpisodeNumber *int   `json:"episode_number" validate:"required_if=Episodic true,omitempty,min=0"`
		Year          *int   `json:"year" validate:"omitempty,min=1900"`
	}

	Dto struct {
		ReleaseID     uuid.UUID `json:"release_id"`
		Name          string    `json:"name"`
		Episodic      *bool     `json:"episodic"`
		SeasonNumber  *int      `json:"season_number"`
		EpisodeNumber *int      `json:"episode_number"`
		Year          *int      `json:"year"`
	}

	ScanResponse struct {
		Scanned   int `json:"scanned"`
		Annotated int `json:"annotated"`
	}

	Store interface {
		GetRelease(releaseID uuid.UUID) (*catalog.Release, error)
		AnnotateRelease(releaseID uuid.UUID, annotation *catalog.ReleaseAnnotation) error
		ScanUnannotatedReleases() (scanned int, annotated int, err error)
	}

	Controller struct {
		validate *validator.Validate
		store    Store
	}
)

func New(validate *validator.Validate, store Store) *Controller {
	return &Controller{validate: validate, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/scan/", controller.scan)
	eg.GET("/:id/", controller.get)
	eg.PUT("/:id/", controller.put)
}

func (controller *Controller) get(ec echo.Context) error {
	release, err := controller.releaseFromPath(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewDto(release))
}

// put replaces the annotation on a release with an operator-supplied one,
// then re-links the release against the catalog hierarchy.
func (controller *Controller) put(ec echo.Context) error {
	release, err := controller.releaseFromPath(ec)
	if err != nil {
		return err
	}

	var request PutRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	annotation := catalog.ReleaseAnnotation{
		Title:         request.Title,
		Episodic:      request.Episodic,
		SeasonNumber:  -1,
		EpisodeNumber: -1,
		Year:          request.Year,
	}
	if request.Episodic {
		annotation.SeasonNumber = *request.SeasonNumber
		annotation.EpisodeNumber = *request.EpisodeNumber
	}

	if err := controller.store.AnnotateRelease(release.ID, &annotation); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	release.ApplyAnnotation(&annotation)
	return ec.JSON(http.StatusOK, NewDto(release))
}

// scan re-runs the release name scraper over every un-annotated release.
func (controller *Controller) scan(ec echo.Context) error {
	scanned, annotated, err := controller.store.ScanUnannotatedReleases()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, ScanResponse{Scanned: scanned, Annotated: annotated})
}

func (controller *Controller) releaseFromPath(ec echo.Context) (*catalog.Release, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Release ID is not a valid UUID")
	}

	release, err := controller.store.GetRelease(id)
	if err != nil {
		if errors.Is(err, catalog.ErrReleaseNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound)
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return release, nil
}

// NewDto creates a Dto using the annotation fields of the Release model.
func NewDto(release *catalog.Release) *Dto {
	return &Dto{
		ReleaseID:     release.ID,
		Name:          release.Name,
		Episodic:      release.Episodic,
		SeasonNumber:  release.SeasonNumber,
		EpisodeNumber: release.EpisodeNumber,
		Year:          release.Year,
	}
}
