// Package matcher decides which files in the uploaded-masks catalog belong to
// a batch.
//
// Catalog filenames were produced by several naming conventions over the life
// of the project (masks_batch_N.tar.xz, Batch_N (2).zip, a bare N, ...). The
// matcher therefore favours recall: it expands a batch identifier into a table
// of prefix variants crossed with archive extensions and accepts a file when
// any probe matches case-insensitively.
//
// Matching pipeline:
//  1. Build a CatalogIndex (entries sorted by upload time, most recent first)
//  2. Expand the batch identifier into Patterns
//  3. Walk the index once and keep every entry some pattern accepts
//  4. Deduplicate by filename, the first (most recent) occurrence wins
//
// Example usage:
//
//	m, err := matcher.NewMatcher(matcher.DefaultMatchingConfig())
//	index := matcher.NewCatalogIndex(entries)
//	result := m.ComputeMatches("batch_42", index)
//	info := result.FileInfo(5)
package matcher

import (
	"fmt"
	"strings"
)

// DefaultExtensions are the archive suffixes probed after every prefix
// variant. The empty entry probes the bare name.
func DefaultExtensions() []string {
	return []string{"", ".tar.xz", ".tar.gz", ".zip", ".tar"}
}

// MatchingConfig controls how batch identifiers are matched against
// catalog filenames.
type MatchingConfig struct {
	// Extensions appended to every prefix variant. "" means no extension.
	Extensions []string `json:"extensions" mapstructure:"extensions"`

	// FileListLimit caps the filenames stored in a batch's file_info.
	FileListLimit int `json:"file_list_limit" mapstructure:"file_list_limit"`

	// StrictBoundaries rejects substring hits that run into further
	// letters or digits, so batch_4 no longer claims batch_40.zip.
	StrictBoundaries bool `json:"strict_boundaries" mapstructure:"strict_boundaries"`
}

// DefaultMatchingConfig returns the permissive configuration
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Extensions:       DefaultExtensions(),
		FileListLimit:    5,
		StrictBoundaries: false,
	}
}

// StrictMatchingConfig returns a configuration that enforces identifier boundaries
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.StrictBoundaries = true
	return config
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if len(mc.Extensions) == 0 {
		return fmt.Errorf("at least one extension is required (use \"\" for bare names)")
	}

	seen := make(map[string]bool, len(mc.Extensions))
	for _, ext := range mc.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
		key := strings.ToLower(ext)
		if seen[key] {
			return fmt.Errorf("duplicate extension %q", ext)
		}
		seen[key] = true
	}

	if mc.FileListLimit <= 0 {
		return fmt.Errorf("file list limit must be positive: %d", mc.FileListLimit)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	clone.Extensions = append([]string(nil), mc.Extensions...)
	return &clone
}

func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Extensions: %q, FileListLimit: %d, StrictBoundaries: %t}",
		mc.Extensions, mc.FileListLimit, mc.StrictBoundaries)
}
