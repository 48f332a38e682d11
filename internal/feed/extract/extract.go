// Package extract implements the path expression mini-language used to pull
// values out of decoded feed items. A path is either a simple dot-separated
// field path (optionally containing a '$' suffixed segment, meaning "first
// element of this sequence"), or an array-search path of the form
//
//	basePath[@key="value"]@targetField
//
// which scans the sequence at basePath for the first element whose attribute
// key matches the given value, and reads the target field off that element.
//
// Every failure mode resolves to a short human-readable diagnostic string
// rather than an error; the result is rendered verbatim in the admin UI's
// extraction tester, and the same diagnostics are surfaced when a feed's
// configured extraction rules fail during ingestion.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Extract resolves the provided path expression against the decoded feed item
// and returns either the stringified value it refers to, or a diagnostic
// describing where resolution failed. It never panics.
func Extract(item any, path string) string {
	result, _ := Try(item, path)
	return result
}

// Try is Extract with an additional flag reporting whether the result is a
// resolved value (true) or a diagnostic (false). The ingestion pipeline uses
// this to decide whether a configured rule succeeded.
func Try(item any, path string) (string, bool) {
	if path == "" || item == nil {
		return "No data available", false
	}

	if strings.Contains(path, "[@") && strings.Contains(path, "]") {
		return extractWithArraySearch(item, path)
	}

	return extractSimplePath(item, path)
}

// extractWithArraySearch resolves paths of the form `base[@key="value"]@target`.
// The target field suffix is used verbatim; a leading '@' (or '.') is NOT
// stripped, as it is itself a literal attribute key in the decoded item.
func extractWithArraySearch(item any, path string) (result string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = fmt.Sprintf("Error parsing complex path: %v", r), false
		}
	}()

	bracketStart := strings.Index(path, "[@")
	if bracketStart == -1 {
		return "Invalid bracket syntax", false
	}
	bracketOffset := strings.Index(path[bracketStart:], "]")
	if bracketOffset == -1 {
		return "Invalid bracket syntax", false
	}
	bracketEnd := bracketStart + bracketOffset

	basePath := path[:bracketStart]
	searchCondition := path[bracketStart+2 : bracketEnd]
	targetField := path[bracketEnd+1:]

	eq := strings.Index(searchCondition, "=")
	if eq == -1 {
		return "Invalid search condition", false
	}

	searchKey := searchCondition[:eq]
	searchValue := stripQuotes(searchCondition[eq+1:])
	if !strings.HasPrefix(searchKey, "@") {
		searchKey = "@" + searchKey
	}

	current := item
	for _, part := range strings.Split(basePath, ".") {
		if part == "" {
			continue
		}

		next := fieldOf(current, part)
		if isFalsy(next) {
			return fmt.Sprintf("Base path part %q not found", part), false
		}
		current = next
	}

	arr, isArr := current.([]any)
	if !isArr {
		return fmt.Sprintf("Expected array but found %s", typeName(current)), false
	}

	for _, elem := range arr {
		obj, isObj := elem.(map[string]any)
		if !isObj {
			continue
		}

		attr, isStr := obj[searchKey].(string)
		if !isStr || attr != searchValue {
			continue
		}

		target := obj[targetField]
		if isFalsy(target) {
			return "Target field not found", false
		}

		return stringify(target), true
	}

	return "No matching item found in array", false
}

// extractSimplePath walks a dot-separated path against the item. Segments
// containing '$' treat the named field as a sequence and continue from its
// first element.
func extractSimplePath(item any, path string) (result string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = fmt.Sprintf("Error extracting value: %v", r), false
		}
	}()

	current := item
	for _, part := range strings.Split(path, ".") {
		if isFalsy(current) {
			return fmt.Sprintf("Path not found at part %q", part), false
		}

		if strings.Contains(part, "$") {
			fieldName := strings.ReplaceAll(part, "$", "")
			fieldName = strings.ReplaceAll(fieldName, ".", "")
			if fieldName != "" {
				current = fieldOf(current, fieldName)
			}

			arr, isArr := current.([]any)
			if !isArr || len(arr) == 0 {
				return fmt.Sprintf("Array not found or empty for part %q", part), false
			}
			current = arr[0]
		} else {
			current = fieldOf(current, part)
		}

		if current == nil {
			return fmt.Sprintf("Field %q not found", part), false
		}
	}

	return stringify(current), true
}

// fieldOf reads the named field off the current cursor. Indexing anything
// that is not a record resolves to nil, which the caller reports as a
// missing field.
func fieldOf(current any, field string) any {
	if obj, ok := current.(map[string]any); ok {
		return obj[field]
	}

	return nil
}

// isFalsy mirrors the permissive truthiness the path language was designed
// around: nil, empty strings, false and numeric zero are all treated as
// absent. Records and sequences are always present, even when empty.
func isFalsy(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case bool:
		return !value
	case float64:
		return value == 0
	case int:
		return value == 0
	case json.Number:
		f, err := value.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

// typeName names the decoded-JSON type of the value for use in diagnostics.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// stringify renders the resolved value for display: records and sequences
// are pretty-printed as 2-space indented JSON, scalars use their plain
// string form.
func stringify(v any) string {
	switch value := v.(type) {
	case map[string]any, []any:
		pretty, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			panic(err)
		}
		return string(pretty)
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case json.Number:
		return value.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}

// stripQuotes removes one pair of surrounding single or double quotes from
// the search value, if present.
func stripQuotes(value string) string {
	if len(value) >= 1 {
		if value[0] == '"' || value[0] == '\'' {
			value = value[1:]
		}
	}
	if len(value) >= 1 {
		last := value[len(value)-1]
		if last == '"' || last == '\'' {
			value = value[:len(value)-1]
		}
	}

	return value
}
