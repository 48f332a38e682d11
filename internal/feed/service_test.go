package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/catalog"
	"github.com/kohaven/medley/internal/database"
	"github.com/kohaven/medley/internal/event"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDataStore struct{ mock.Mock }

func (m *mockDataStore) ListFeeds() ([]*Feed, error) {
	args := m.Called()
	return args.Get(0).([]*Feed), args.Error(1)
}

func (m *mockDataStore) MarkFeedPolled(feedID uuid.UUID, at time.Time) error {
	return m.Called(feedID, at).Error(0)
}

func (m *mockDataStore) SaveFeedSample(feedID uuid.UUID, sample map[string]any) error {
	return m.Called(feedID, sample).Error(0)
}

func (m *mockDataStore) ListReleaseGuids() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDataStore) SaveAnnotatedRelease(release *catalog.Release, annotation *catalog.ReleaseAnnotation) error {
	return m.Called(release, annotation).Error(0)
}

func newTestService(t *testing.T, store DataStore) *ingestService {
	t.Helper()

	service, err := New(Config{
		ForceSyncSeconds:     100,
		IngestionParallelism: 1,
		FetchTimeoutSeconds:  5,
	}, &catalog.Annotator{}, store, event.New())
	require.NoError(t, err)

	return service
}

func parsedItem(guid, title string, seeders string) *gofeed.Item {
	return &gofeed.Item{
		Title: title,
		GUID:  guid,
		Link:  "https://indexer.example/details/" + guid,
		Extensions: ext.Extensions{
			"torznab": {
				"attr": {
					{Name: "attr", Attrs: map[string]string{"name": "seeders", "value": seeders}},
					{Name: "attr", Attrs: map[string]string{"name": "peers", "value": "7"}},
				},
			},
		},
	}
}

func testFeed(rules ExtractionRules) *Feed {
	f := &Feed{
		ID:                  uuid.New(),
		Name:                "test indexer",
		URL:                 "https://indexer.example/rss",
		PollIntervalSeconds: 900,
		Enabled:             true,
	}
	f.ExtractionRules = database.NewJsonColumn(&rules)
	return f
}

func Test_QueuedItem_IngestsToCompletion(t *testing.T) {
	store := &mockDataStore{}
	service := newTestService(t, store)
	require.NoError(t, service.workerPool.Start())
	t.Cleanup(service.workerPool.Close)

	f := testFeed(ExtractionRules{Seeders: `torznab.attr[@name="seeders"]@value`})
	store.On("ListFeeds").Return([]*Feed{f}, nil)
	store.On("ListReleaseGuids").Return([]string{}, nil)

	var saved *catalog.Release
	store.On("SaveAnnotatedRelease", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(0).(*catalog.Release) }).
		Return(nil)

	service.queueNewItems(f, []*gofeed.Item{parsedItem("guid-1", "Some.Show.S02E05.1080p", "42")})

	items := service.GetAllIngests()
	require.Len(t, items, 1)
	assert.Equal(t, IDLE, items[0].State)

	progressed, err := service.ExecuteTask(nil)
	require.NoError(t, err)
	assert.True(t, progressed)

	require.NotNil(t, saved)
	assert.Equal(t, "Some.Show.S02E05.1080p", saved.Name)
	assert.Equal(t, "guid-1", saved.Guid)
	require.NotNil(t, saved.Seeders)
	assert.Equal(t, 42, *saved.Seeders)
	require.NotNil(t, saved.Episodic)
	assert.True(t, *saved.Episodic)

	items = service.GetAllIngests()
	require.Len(t, items, 1)
	assert.Equal(t, COMPLETE, items[0].State)
}

func Test_QueueNewItems_DeduplicatesKnownGuids(t *testing.T) {
	store := &mockDataStore{}
	service := newTestService(t, store)

	f := testFeed(ExtractionRules{})
	store.On("ListReleaseGuids").Return([]string{"already-known"}, nil)

	service.queueNewItems(f, []*gofeed.Item{
		parsedItem("already-known", "Old.Show.S01E01", "1"),
		parsedItem("brand-new", "New.Show.S01E01", "1"),
		parsedItem("brand-new", "New.Show.S01E01", "1"),
	})

	items := service.GetAllIngests()
	require.Len(t, items, 1)
	assert.Equal(t, "brand-new", items[0].Guid)
}

func Test_UnrecognisableRelease_BecomesTroubled_AndResolvesWithAnnotation(t *testing.T) {
	store := &mockDataStore{}
	service := newTestService(t, store)
	require.NoError(t, service.workerPool.Start())
	t.Cleanup(service.workerPool.Close)

	f := testFeed(ExtractionRules{})
	store.On("ListFeeds").Return([]*Feed{f}, nil)
	store.On("ListReleaseGuids").Return([]string{}, nil)

	var saved *catalog.Release
	store.On("SaveAnnotatedRelease", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(0).(*catalog.Release) }).
		Return(nil)

	service.queueNewItems(f, []*gofeed.Item{parsedItem("guid-2", "completely-unparseable-name", "0")})

	_, err := service.ExecuteTask(nil)
	require.NoError(t, err)

	items := service.GetAllIngests()
	require.Len(t, items, 1)
	require.Equal(t, TROUBLED, items[0].State)
	require.NotNil(t, items[0].Trouble)
	assert.Equal(t, ANNOTATION_FAILURE, items[0].Trouble.Type())
	assert.ElementsMatch(t,
		[]ResolutionType{ABORT, RETRY, SPECIFY_ANNOTATION},
		items[0].Trouble.AllowedResolutionTypes())

	// An incompatible context is rejected without mutating the item.
	err = service.ResolveTroubledIngest(items[0].ID, SPECIFY_ANNOTATION, map[string]string{})
	assert.ErrorIs(t, err, ErrResolutionIncomplete)
	assert.Equal(t, TROUBLED, items[0].State)

	err = service.ResolveTroubledIngest(items[0].ID, SPECIFY_ANNOTATION, map[string]string{
		"title":          "Completely Unparseable Name",
		"episodic":       "true",
		"season_number":  "3",
		"episode_number": "9",
	})
	require.NoError(t, err)
	assert.Equal(t, IDLE, items[0].State)
	assert.Nil(t, items[0].Trouble)

	_, err = service.ExecuteTask(nil)
	require.NoError(t, err)

	require.NotNil(t, saved)
	require.NotNil(t, saved.SeasonNumber)
	assert.Equal(t, 3, *saved.SeasonNumber)
	require.NotNil(t, saved.EpisodeNumber)
	assert.Equal(t, 9, *saved.EpisodeNumber)
	assert.Equal(t, COMPLETE, service.GetAllIngests()[0].State)
}

func Test_FailingExtractionRule_RaisesExtractionTrouble(t *testing.T) {
	store := &mockDataStore{}
	service := newTestService(t, store)
	require.NoError(t, service.workerPool.Start())
	t.Cleanup(service.workerPool.Close)

	f := testFeed(ExtractionRules{Name: "no.such.path"})
	store.On("ListFeeds").Return([]*Feed{f}, nil)
	store.On("ListReleaseGuids").Return([]string{}, nil)

	service.queueNewItems(f, []*gofeed.Item{parsedItem("guid-3", "Some.Show.S01E01", "5")})

	_, err := service.ExecuteTask(nil)
	require.NoError(t, err)

	items := service.GetAllIngests()
	require.Len(t, items, 1)
	require.Equal(t, TROUBLED, items[0].State)
	assert.Equal(t, EXTRACTION_FAILURE, items[0].Trouble.Type())
}

func Test_RemoveIngest_RefusesInFlightItems(t *testing.T) {
	store := &mockDataStore{}
	service := newTestService(t, store)

	f := testFeed(ExtractionRules{})
	store.On("ListReleaseGuids").Return([]string{}, nil)
	service.queueNewItems(f, []*gofeed.Item{parsedItem("guid-4", "Some.Show.S01E01", "5")})

	items := service.GetAllIngests()
	require.Len(t, items, 1)

	items[0].State = INGESTING
	assert.Error(t, service.RemoveIngest(items[0].ID))

	items[0].State = IDLE
	require.NoError(t, service.RemoveIngest(items[0].ID))
	assert.Empty(t, service.GetAllIngests())
}
