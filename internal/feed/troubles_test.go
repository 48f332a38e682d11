package feed

import (
	"errors"
	"testing"

	"github.com/kohaven/medley/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func Test_NewTrouble_Classification(t *testing.T) {
	tests := []struct {
		summary      string
		err          error
		expectedType TroubleType
	}{
		{"unrecognised release name", catalog.ErrUnrecognisedReleaseName, ANNOTATION_FAILURE},
		{"extraction error", &ExtractionError{Field: "name", Path: "title", Diagnostic: "No data available"}, EXTRACTION_FAILURE},
		{"fetch error", &FetchError{Err: errors.New("timeout")}, FETCH_FAILURE},
		{"anything else", errors.New("disk full"), GENERIC_FAILURE},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			trouble := newTrouble(tt.err)
			assert.Equal(t, tt.expectedType, trouble.Type())
		})
	}
}

func Test_TroubleType_String(t *testing.T) {
	tests := []struct {
		tType    TroubleType
		expected string
	}{
		{FETCH_FAILURE, "FETCH_FAILURE[0]"},
		{EXTRACTION_FAILURE, "EXTRACTION_FAILURE[1]"},
		{ANNOTATION_FAILURE, "ANNOTATION_FAILURE[2]"},
		{GENERIC_FAILURE, "GENERIC_FAILURE[3]"},
		{TroubleType(99), "UNKNOWN[99]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.tType.String())
		})
	}
}
