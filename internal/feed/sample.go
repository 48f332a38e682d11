package feed

import (
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ItemToSample converts a parsed feed item in to the generic decoded form
// that path expressions are evaluated against. Attributes are keyed with a
// leading '@', element text content is keyed as '#text', and namespaced
// extensions (torznab attrs and friends) are nested under their prefix.
func ItemToSample(item *gofeed.Item) map[string]any {
	if item == nil {
		return nil
	}

	sample := map[string]any{
		"title":       item.Title,
		"description": item.Description,
		"link":        item.Link,
		"guid":        item.GUID,
		"pubDate":     item.Published,
	}

	if len(item.Categories) > 0 {
		categories := make([]any, 0, len(item.Categories))
		for _, c := range item.Categories {
			categories = append(categories, c)
		}
		sample["category"] = categories
	}

	if len(item.Enclosures) > 0 {
		enclosures := make([]any, 0, len(item.Enclosures))
		for _, enc := range item.Enclosures {
			enclosures = append(enclosures, map[string]any{
				"@url":    enc.URL,
				"@length": enc.Length,
				"@type":   enc.Type,
			})
		}
		sample["enclosure"] = enclosures
	}

	for key, value := range item.Custom {
		if _, clash := sample[key]; !clash {
			sample[key] = value
		}
	}

	for prefix, elements := range item.Extensions {
		sample[prefix] = extensionToSample(elements)
	}

	return sample
}

func extensionToSample(elements map[string][]ext.Extension) map[string]any {
	out := make(map[string]any, len(elements))
	for name, occurrences := range elements {
		converted := make([]any, 0, len(occurrences))
		for _, occurrence := range occurrences {
			converted = append(converted, extensionElement(occurrence))
		}

		// Occurrences are always kept as a list, even when there is only
		// one, so that array-search expressions behave the same regardless
		// of how many attributes a particular item happens to carry.
		out[name] = converted
	}

	return out
}

func extensionElement(element ext.Extension) any {
	// A bare element with no attributes or children is just its text.
	if len(element.Attrs) == 0 && len(element.Children) == 0 {
		return element.Value
	}

	obj := make(map[string]any, len(element.Attrs)+len(element.Children)+1)
	for attr, value := range element.Attrs {
		obj["@"+attr] = value
	}
	if element.Value != "" {
		obj["#text"] = element.Value
	}
	for child, occurrences := range element.Children {
		converted := make([]any, 0, len(occurrences))
		for _, occurrence := range occurrences {
			converted = append(converted, extensionElement(occurrence))
		}
		obj[child] = converted
	}

	return obj
}
