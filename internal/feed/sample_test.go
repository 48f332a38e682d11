package feed

import (
	"testing"

	"github.com/kohaven/medley/internal/feed/extract"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ItemToSample_StandardFields(t *testing.T) {
	sample := ItemToSample(&gofeed.Item{
		Title:       "Show.Name.S01E01",
		Description: "desc",
		Link:        "https://indexer.example/details/1",
		GUID:        "guid-1",
		Published:   "Mon, 02 Jan 2006 15:04:05 MST",
		Categories:  []string{"TV", "HD"},
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://indexer.example/dl/1.torrent", Length: "734003200", Type: "application/x-bittorrent"},
		},
	})

	assert.Equal(t, "Show.Name.S01E01", sample["title"])
	assert.Equal(t, "guid-1", sample["guid"])
	assert.Equal(t, []any{"TV", "HD"}, sample["category"])

	enclosures, ok := sample["enclosure"].([]any)
	require.True(t, ok)
	require.Len(t, enclosures, 1)
	assert.Equal(t, map[string]any{
		"@url":    "https://indexer.example/dl/1.torrent",
		"@length": "734003200",
		"@type":   "application/x-bittorrent",
	}, enclosures[0])
}

func Test_ItemToSample_NilItem(t *testing.T) {
	assert.Nil(t, ItemToSample(nil))
}

// Extension occurrences must always decode to a list, even with a single
// element, so array-search expressions behave the same regardless of how
// many attributes an item carries.
func Test_ItemToSample_ExtensionsKeepOccurrenceLists(t *testing.T) {
	item := &gofeed.Item{
		Title: "Show.Name.S01E01",
		GUID:  "guid-1",
		Extensions: ext.Extensions{
			"torznab": {
				"attr": []ext.Extension{
					{Name: "attr", Attrs: map[string]string{"name": "seeders", "value": "42"}},
				},
			},
		},
	}

	sample := ItemToSample(item)
	torznab, ok := sample["torznab"].(map[string]any)
	require.True(t, ok)

	attrs, ok := torznab["attr"].([]any)
	require.True(t, ok)
	require.Len(t, attrs, 1)
	assert.Equal(t, map[string]any{"@name": "seeders", "@value": "42"}, attrs[0])

	result, resolved := extract.Try(sample, `torznab.attr[@name="seeders"]@value`)
	assert.True(t, resolved)
	assert.Equal(t, "42", result)
}

func Test_ItemToSample_BareExtensionIsText(t *testing.T) {
	item := &gofeed.Item{
		GUID: "guid-1",
		Extensions: ext.Extensions{
			"media": {
				"rating": []ext.Extension{{Name: "rating", Value: "PG-13"}},
			},
		},
	}

	sample := ItemToSample(item)
	assert.Equal(t, "PG-13", extract.Extract(sample, "media.rating$"))
}
