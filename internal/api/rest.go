package api

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kohaven/medley/internal/api/annotations"
	"github.com/kohaven/medley/internal/api/catalogs"
	"github.com/kohaven/medley/internal/api/corrections"
	"github.com/kohaven/medley/internal/api/feeds"
	"github.com/kohaven/medley/internal/api/ingests"
	"github.com/kohaven/medley/internal/http/websocket"
	"github.com/kohaven/medley/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore represents a union of all the controller store requirements
	dataStore interface {
		feeds.Store
		catalogs.Store
		annotations.Store
	}

	// ingestService is the union of the controller-facing ingestion surface:
	// the ingest queue endpoints plus the feed poll triggers.
	ingestService interface {
		ingests.IngestService
		feeds.Service
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. It's sole
	// responsibility is to create the routes Medley exposes and to manage the
	// ongoing activity websocket connections and events.
	RestGateway struct {
		*broadcaster
		config               *RestConfig
		ec                   *echo.Echo
		socket               *websocket.SocketHub
		feedController       controller
		catalogController    controller
		annotationController controller
		correctionController controller
		ingestController     controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Each controller requires access
// to a data store or service, which are provided as arguments.
func NewRestGateway(
	config *RestConfig,
	ingestService ingestService,
	correctionService corrections.Service,
	store dataStore,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:          newBroadcaster(socket, ingestService),
		config:               config,
		ec:                   ec,
		socket:               socket,
		feedController:       feeds.New(validate, store, ingestService),
		catalogController:    catalogs.New(store),
		annotationController: annotations.New(validate, store),
		correctionController: corrections.New(validate, correctionService),
		ingestController:     ingests.New(ingestService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/medley/v1/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	feedGroup := ec.Group("/api/medley/v1/feeds")
	gateway.feedController.SetRoutes(feedGroup)

	catalogGroup := ec.Group("/api/medley/v1/catalog")
	gateway.catalogController.SetRoutes(catalogGroup)

	annotationGroup := ec.Group("/api/medley/v1/annotations")
	gateway.annotationController.SetRoutes(annotationGroup)

	correctionGroup := ec.Group("/api/medley/v1/corrections")
	gateway.correctionController.SetRoutes(correctionGroup)

	ingestGroup := ec.Group("/api/medley/v1/ingests")
	gateway.ingestController.SetRoutes(ingestGroup)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
