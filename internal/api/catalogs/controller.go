package catalogs

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		ListSeries() ([]*catalog.Series, error)
		GetInflatedSeries(seriesID uuid.UUID) (*catalog.InflatedSeries, error)
		ListMovies() ([]*catalog.Movie, error)
		GetMovie(movieID uuid.UUID) (*catalog.Movie, error)
		ListReleases(feedID *uuid.UUID) ([]*catalog.Release, error)
		GetRelease(releaseID uuid.UUID) (*catalog.Release, error)
	}

	// Controller exposes read-only browsing over the catalog. Mutation
	// happens through ingestion and the correction workflow, never
	// directly through these endpoints.
	Controller struct {
		store Store
	}
)

func New(store Store) *Controller {
	return &Controller{store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/series/", controller.listSeries)
	eg.GET("/series/:id/", controller.getSeries)
	eg.GET("/movies/", controller.listMovies)
	eg.GET("/movies/:id/", controller.getMovie)
	eg.GET("/releases/", controller.listReleases)
	eg.GET("/releases/:id/", controller.getRelease)
}

func (controller *Controller) listSeries(ec echo.Context) error {
	series, err := controller.store.ListSeries()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, series)
}

func (controller *Controller) getSeries(ec echo.Context) error {
	id, err := parseID(ec, "Series")
	if err != nil {
		return err
	}

	series, err := controller.store.GetInflatedSeries(id)
	if err != nil {
		return notFoundOrInternal(err, catalog.ErrSeriesNotFound)
	}

	return ec.JSON(http.StatusOK, series)
}

func (controller *Controller) listMovies(ec echo.Context) error {
	movies, err := controller.store.ListMovies()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, movies)
}

func (controller *Controller) getMovie(ec echo.Context) error {
	id, err := parseID(ec, "Movie")
	if err != nil {
		return err
	}

	movie, err := controller.store.GetMovie(id)
	if err != nil {
		return notFoundOrInternal(err, catalog.ErrMovieNotFound)
	}

	return ec.JSON(http.StatusOK, movie)
}

// listReleases returns all known releases, optionally filtered to a single
// source feed via the 'feed_id' query param.
func (controller *Controller) listReleases(ec echo.Context) error {
	var feedID *uuid.UUID
	if raw := ec.QueryParam("feed_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "feed_id is not a valid UUID")
		}
		feedID = &parsed
	}

	releases, err := controller.store.ListReleases(feedID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, releases)
}

func (controller *Controller) getRelease(ec echo.Context) error {
	id, err := parseID(ec, "Release")
	if err != nil {
		return err
	}

	release, err := controller.store.GetRelease(id)
	if err != nil {
		return notFoundOrInternal(err, catalog.ErrReleaseNotFound)
	}

	return ec.JSON(http.StatusOK, release)
}

func parseID(ec echo.Context, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, label+" ID is not a valid UUID")
	}

	return id, nil
}

func notFoundOrInternal(err error, notFound error) error {
	if errors.Is(err, notFound) {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
