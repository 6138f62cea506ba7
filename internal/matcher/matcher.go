package matcher

import (
	"fmt"
	"strings"
	"time"

	"segmentation-tracker/internal/models"
)

// Matcher resolves batch identifiers to catalog files
type Matcher struct {
	config *MatchingConfig
}

// MatchResult is the set of catalog files judged to belong to one batch
type MatchResult struct {
	BatchID        string                `json:"batch_id"`
	Files          []models.CatalogEntry `json:"files"`
	FileCount      int                   `json:"file_count"`
	HasFiles       bool                  `json:"has_files"`
	LastFileUpload *time.Time            `json:"last_file_upload"`
}

// NewMatcher creates a matcher with the given configuration
func NewMatcher(config *MatchingConfig) (*Matcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	return &Matcher{config: config.Clone()}, nil
}

// NewDefaultMatcher creates a matcher with the default configuration
func NewDefaultMatcher() *Matcher {
	return &Matcher{config: DefaultMatchingConfig()}
}

// Config returns a copy of the matcher configuration
func (m *Matcher) Config() *MatchingConfig {
	return m.config.Clone()
}

// Patterns returns the probe table this matcher uses for batchID
func (m *Matcher) Patterns(batchID string) []Pattern {
	return Patterns(batchID, m.config.Extensions)
}

// Matches reports whether a single filename belongs to batchID
func (m *Matcher) Matches(batchID, filename string) bool {
	probes := compileProbes(m.Patterns(batchID), m.config.StrictBoundaries)
	return probes.matches(strings.ToLower(filename))
}

// ComputeMatches returns the deduplicated catalog files for batchID, most
// recent first.
func (m *Matcher) ComputeMatches(batchID string, index *CatalogIndex) *MatchResult {
	result := &MatchResult{BatchID: batchID, Files: []models.CatalogEntry{}}
	if index == nil {
		return result
	}

	probes := compileProbes(m.Patterns(batchID), m.config.StrictBoundaries)
	seen := make(map[string]bool)

	for _, e := range index.entries {
		if seen[e.entry.Filename] || !probes.matches(e.lower) {
			continue
		}
		seen[e.entry.Filename] = true
		result.Files = append(result.Files, e.entry)
	}

	result.FileCount = len(result.Files)
	result.HasFiles = result.FileCount > 0
	if result.HasFiles {
		latest := result.Files[0].UploadDate
		result.LastFileUpload = &latest
	}

	return result
}

// ComputeMatches matches batchID against a raw catalog with the default
// configuration.
func ComputeMatches(batchID string, catalog []models.CatalogEntry) *MatchResult {
	return NewDefaultMatcher().ComputeMatches(batchID, NewCatalogIndex(catalog))
}

// Filenames returns the matched filenames in result order
func (r *MatchResult) Filenames() []string {
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = f.Filename
	}
	return names
}

// FileInfo builds the summary stored on the batch record, keeping at most
// limit filenames.
func (r *MatchResult) FileInfo(limit int) *models.FileInfo {
	names := r.Filenames()
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	info := &models.FileInfo{
		FileCount: r.FileCount,
		HasFiles:  r.HasFiles,
		Files:     names,
	}
	if r.LastFileUpload != nil {
		t := *r.LastFileUpload
		info.LastFileUpload = &t
	}
	return info
}

// TotalBytes sums the size of all matched files
func (r *MatchResult) TotalBytes() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Length
	}
	return total
}
