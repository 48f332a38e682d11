package extract_test

import (
	"encoding/json"
	"testing"

	"github.com/kohaven/medley/internal/feed/extract"
	"github.com/stretchr/testify/assert"
)

// decode round-trips a literal through encoding/json so the values under
// test carry the exact shapes the extractor sees in production (float64
// numbers, map[string]any records).
func decode(t *testing.T, raw string) any {
	t.Helper()

	var out any
	assert.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func torznabItem(t *testing.T) any {
	return decode(t, `{
		"title": "Show.Name.S02E05.1080p.WEB.H264",
		"torznab": {
			"attr": [
				{"@name": "seeders", "@value": "42"},
				{"@name": "peers", "@value": "7"}
			]
		}
	}`)
}

func Test_Extract_GuardClauses(t *testing.T) {
	item := decode(t, `{"a": 1}`)

	assert.Equal(t, "No data available", extract.Extract(item, ""))
	assert.Equal(t, "No data available", extract.Extract(nil, "a.b"))
	assert.Equal(t, "No data available", extract.Extract(nil, ""))
}

func Test_Extract_SimplePath(t *testing.T) {
	tests := []struct {
		summary  string
		item     string
		path     string
		expected string
	}{
		{"nested leaf", `{"a": {"b": {"c": "x"}}}`, "a.b.c", "x"},
		{"top level leaf", `{"title": "hello"}`, "title", "hello"},
		{"number leaf", `{"size": 734003200}`, "size", "734003200"},
		{"float leaf", `{"ratio": 1.5}`, "ratio", "1.5"},
		{"boolean leaf", `{"adult": true}`, "adult", "true"},
		{"missing field", `{"a": {}}`, "a.b", `Field "b" not found`},
		{"missing root", `{"a": {}}`, "x.y", `Field "x" not found`},
		{"scalar mid-path", `{"a": "leaf"}`, "a.b", `Field "b" not found`},
		{"wildcard first element", `{"a": [{"v": 1}, {"v": 2}]}`, "a$.v", "1"},
		{"wildcard not an array", `{"a": {"v": 1}}`, "a$.v", `Array not found or empty for part "a$"`},
		{"wildcard empty array", `{"a": []}`, "a$.v", `Array not found or empty for part "a$"`},
		{"falsy mid-path", `{"a": ""}`, "a.b", `Path not found at part "b"`},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.expected, extract.Extract(decode(t, tt.item), tt.path))
		})
	}
}

func Test_Extract_ArraySearch(t *testing.T) {
	item := torznabItem(t)

	tests := []struct {
		summary  string
		path     string
		expected string
	}{
		{"match first attribute", `torznab.attr[@name="seeders"]@value`, "42"},
		{"match second attribute", `torznab.attr[@name="peers"]@value`, "7"},
		{"bracket without @ is a simple path", `torznab.attr[name="seeders"]@value`, `Field "attr[name=\"seeders\"]@value" not found`},
		{"single quoted value", `torznab.attr[@name='seeders']@value`, "42"},
		{"unquoted value", `torznab.attr[@name=seeders]@value`, "42"},
		{"no match", `torznab.attr[@name="missing"]@value`, "No matching item found in array"},
		{"target field missing", `torznab.attr[@name="seeders"]@size`, "Target field not found"},
		{"missing base path", `torznab.missing[@name="seeders"]@value`, `Base path part "missing" not found`},
		{"base path not an array", `torznab[@name="seeders"]@value`, "Expected array but found object"},
		{"missing equals", `torznab.attr[@name]@value`, "Invalid search condition"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.expected, extract.Extract(item, tt.path))
		})
	}
}

// The target field suffix of an array-search path is used verbatim. A
// leading '.' or '@' must not be stripped as feed configurations in the
// wild rely on the literal behaviour.
func Test_Extract_ArraySearch_TargetFieldVerbatim(t *testing.T) {
	item := decode(t, `{
		"attrs": [
			{"@name": "seeders", "@value": "9", ".value": "dotted"}
		]
	}`)

	assert.Equal(t, "9", extract.Extract(item, `attrs[@name="seeders"]@value`))
	assert.Equal(t, "dotted", extract.Extract(item, `attrs[@name="seeders"].value`))

	// 'value' (no prefix) is not a key on the element; the '@' prefix
	// convention only applies to the search key, never the target.
	assert.Equal(t, "Target field not found", extract.Extract(item, `attrs[@name="seeders"]value`))
}

func Test_Extract_ModeDetection(t *testing.T) {
	// A path containing only one of '[@' or ']' is resolved as a simple
	// dot-path; the literal segment is simply not present on the item.
	item := decode(t, `{"a": {"b": "x"}}`)

	assert.Equal(t, `Field "a[@b" not found`, extract.Extract(item, "a[@b"))
	assert.Equal(t, `Field "a]b" not found`, extract.Extract(item, "a]b"))
}

func Test_Extract_ObjectLeafPrettyPrinted(t *testing.T) {
	item := decode(t, `{"a": {"x": 1, "y": 2}}`)
	result := extract.Extract(item, "a")

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal([]byte(result), &decoded), "expected result to be valid JSON")
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2)}, decoded)
	assert.Contains(t, result, "\n  \"x\": 1", "expected 2-space indented output")
}

func Test_Extract_Idempotent(t *testing.T) {
	item := torznabItem(t)
	path := `torznab.attr[@name="seeders"]@value`

	first := extract.Extract(item, path)
	second := extract.Extract(item, path)
	assert.Equal(t, first, second)
}
