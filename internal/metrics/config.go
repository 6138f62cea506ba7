// Package metrics computes the dashboard summaries over the batch set:
// global status counts, per-assignee rollups and a dated progress series.
//
// All computations are pure functions of their inputs. Rates are percentages
// rounded to one decimal place and are 0 whenever their denominator is 0.
package metrics

import (
	"fmt"
	"strings"
)

// Config tunes the team and time series views
type Config struct {
	// RecentLimit is the number of batch IDs listed per assignee
	RecentLimit int `json:"recent_limit" mapstructure:"recent_limit"`

	// MissingDateSentinel replaces an empty assigned_at when ordering recent
	// batches. It must sort before every real date so undated batches come last.
	MissingDateSentinel string `json:"missing_date_sentinel" mapstructure:"missing_date_sentinel"`

	// UnassignedLabel names the group of batches without an assignee
	UnassignedLabel string `json:"unassigned_label" mapstructure:"unassigned_label"`
}

// DefaultConfig returns the standard dashboard settings
func DefaultConfig() *Config {
	return &Config{
		RecentLimit:         3,
		MissingDateSentinel: "0000-00-00",
		UnassignedLabel:     "Unassigned",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RecentLimit < 0 {
		return fmt.Errorf("recent limit cannot be negative: %d", c.RecentLimit)
	}
	if strings.TrimSpace(c.UnassignedLabel) == "" {
		return fmt.Errorf("unassigned label cannot be empty")
	}
	if c.MissingDateSentinel >= "1900-01-01" {
		return fmt.Errorf("missing date sentinel %q would sort among real dates", c.MissingDateSentinel)
	}
	return nil
}
