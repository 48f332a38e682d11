package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/api"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/correction"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/internal/event"
	"github.com/kohaven/medley/internal/feed"
	"github.com/kohaven/medley/pkg/docker"
	"github.com/kohaven/medley/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	RestGateway interface {
		RunnableService
		BroadcastIngestUpdate(uuid.UUID) error
		BroadcastFeedUpdate(uuid.UUID) error
		BroadcastCatalogUpdate(uuid.UUID) error
		BroadcastNewRelease(uuid.UUID) error
		BroadcastCorrectionUpdate(uuid.UUID) error
		BroadcastCorrectionResolved(uuid.UUID) error
	}

	IngestService interface {
		RunnableService
		GetAllIngests() []*feed.IngestItem
		GetIngest(uuid.UUID) *feed.IngestItem
		RemoveIngest(uuid.UUID) error
		PollAllFeeds()
		PollFeed(context.Context, *feed.Feed) error
		ResolveTroubledIngest(itemID uuid.UUID, method feed.ResolutionType, context map[string]string) error
	}
)

// Medley represents the top-level object for the server, and is responsible
// for initialising embedded support services, services, stores, event
// handling, et cetera...
type medleyImpl struct {
	eventBus        event.EventCoordinator
	activityService *activityService
	config          MedleyConfig
	dockerManager   docker.DockerManager

	db   database.Manager
	data *dataOrchestrator

	restGateway       RestGateway
	ingestService     IngestService
	correctionService *correction.Service
}

func New(config MedleyConfig) *medleyImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Medley services using config: %#v\n", config)
	db := database.New()
	medley := &medleyImpl{
		eventBus: event.New(),
		config:   config,
		db:       db,
		data:     NewDataOrchestrator(db),
	}

	if serv, err := feed.New(config.IngestService, &catalog.Annotator{}, medley.data, medley.eventBus); err == nil {
		medley.ingestService = serv
	} else {
		panic(fmt.Sprintf("failed to construct ingestion service due to error: %s", err.Error()))
	}

	medley.correctionService = correction.NewService(db, medley.data.CatalogStore, medley.eventBus)
	medley.restGateway = api.NewRestGateway(&config.RestConfig, medley.ingestService, medley.correctionService, medley.data)
	medley.activityService = newActivityService(medley.restGateway, medley.eventBus)

	return medley
}

// Run will start all of Medley by bringing up all required services and connections, such as:
// - Docker services
// - Database connection and migrations
// - Service instances
//
// This function will not return until Medley is stopped.
// To stop Medley, the provided context must be cancelled. Errors from which Medley cannot recover
// will also cause Medley to stop.
func (medley *medleyImpl) Run(parent context.Context) error {
	medley.dockerManager = docker.NewDockerManager()
	defer medley.dockerManager.Shutdown(time.Second * 10)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Initialising Docker services...\n")
	if err := medley.initialiseDockerServices(medley.config, crashHandler); err != nil {
		return err
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := medley.db.Connect(medley.config.Database); err != nil {
		return err
	}
	if err := medley.db.ExecuteMigrations(); err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	medley.spawnAsyncService(ctx, wg, medley.ingestService, "ingest-service", crashHandler)
	medley.spawnAsyncService(ctx, wg, medley.activityService, "activity-service", crashHandler)
	medley.spawnAsyncService(ctx, wg, medley.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Medley services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Medley service waitgroup is updated correctly
func (medley *medleyImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

// initialiseDockerServices will initialise all supporting services
// for Medley (Postgres, PgAdmin)
func (medley *medleyImpl) initialiseDockerServices(config MedleyConfig, crashHandler func(string, error)) error {
	if config.Services.EnablePostgres {
		log.Emit(logger.INFO, "Initialising embedded database...\n")
		if _, err := database.InitialiseDockerDatabase(
			medley.dockerManager,
			config.Database,
			func(err error) { crashHandler("docker-postgres", err) },
		); err != nil {
			return err
		}
	}

	if config.Services.EnablePgAdmin {
		log.Emit(logger.INFO, "Initialising embedded pgAdmin server...\n")
		if _, err := database.InitialiseDockerPgAdmin(
			medley.dockerManager,
			func(err error) { crashHandler("docker-pgadmin", err) },
		); err != nil {
			return err
		}
	}

	return nil
}
