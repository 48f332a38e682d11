package feed

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kohaven/medley/internal/database"
	"github.com/mitchellh/mapstructure"
)

type (
	// ExtractionRules maps the fields of a release to the path expressions
	// used to pull them out of a decoded feed item. All rules are optional;
	// unset fields fall back to the standard RSS fields of the item (or
	// remain empty where no standard equivalent exists).
	ExtractionRules struct {
		Name        string `json:"name,omitempty" mapstructure:"name"`
		Guid        string `json:"guid,omitempty" mapstructure:"guid"`
		InfoURL     string `json:"info_url,omitempty" mapstructure:"info_url"`
		DownloadURL string `json:"download_url,omitempty" mapstructure:"download_url"`
		Size        string `json:"size,omitempty" mapstructure:"size"`
		Seeders     string `json:"seeders,omitempty" mapstructure:"seeders"`
		Peers       string `json:"peers,omitempty" mapstructure:"peers"`
		Category    string `json:"category,omitempty" mapstructure:"category"`
	}

	// Feed is a configured RSS/torznab source. The extraction rules and the
	// most recently fetched sample item are stored as JSONB so the admin UI
	// can test path expressions against a real item without re-fetching.
	Feed struct {
		ID                  uuid.UUID                            `db:"id"`
		Name                string                               `db:"name"`
		URL                 string                               `db:"url"`
		PollIntervalSeconds int                                  `db:"poll_interval_seconds"`
		Enabled             bool                                 `db:"enabled"`
		ExtractionRules     database.JsonColumn[ExtractionRules] `db:"extraction_rules"`
		LatestSample        database.JsonColumn[map[string]any]  `db:"latest_sample"`
		LastPolledAt        *time.Time                           `db:"last_polled_at"`
		CreatedAt           time.Time                            `db:"created_at"`
		UpdatedAt           time.Time                            `db:"updated_at"`
	}
)

// PollInterval returns the feeds poll interval as a duration.
func (feed *Feed) PollInterval() time.Duration {
	return time.Duration(feed.PollIntervalSeconds) * time.Second
}

// Due reports whether the feed should be fetched again, based on the last
// successful poll and the configured interval. Disabled feeds are never due.
func (feed *Feed) Due(now time.Time) bool {
	if !feed.Enabled {
		return false
	}
	if feed.LastPolledAt == nil {
		return true
	}

	return now.Sub(*feed.LastPolledAt) >= feed.PollInterval()
}

// Rules returns the feeds extraction rules, or an empty rule set if none
// have been configured.
func (feed *Feed) Rules() ExtractionRules {
	if rules := feed.ExtractionRules.Get(); rules != nil {
		return *rules
	}

	return ExtractionRules{}
}

// SetRules replaces the feeds extraction rules.
func (feed *Feed) SetRules(rules *ExtractionRules) {
	feed.ExtractionRules = database.NewJsonColumn(rules)
}

// DecodeExtractionRules decodes a generic JSON object (as submitted by the
// admin UI) in to an ExtractionRules struct. Unknown keys are rejected so
// that typos in rule names surface immediately rather than silently
// disabling a rule.
func DecodeExtractionRules(raw map[string]any) (*ExtractionRules, error) {
	var rules ExtractionRules
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rules,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct extraction rule decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("illegal extraction rules: %w", err)
	}

	return &rules, nil
}
