package matcher

import (
	"sort"
	"strings"
	"time"

	"segmentation-tracker/internal/models"
)

// CatalogIndex holds catalog entries ordered for matching
type CatalogIndex struct {
	// entries sorted by upload time, most recent first; ties keep catalog order
	entries []indexedEntry

	// byName maps lowercased filenames to positions in entries
	byName map[string][]int
}

type indexedEntry struct {
	entry models.CatalogEntry
	lower string
}

// NewCatalogIndex builds an index over a catalog snapshot
func NewCatalogIndex(entries []models.CatalogEntry) *CatalogIndex {
	index := &CatalogIndex{
		entries: make([]indexedEntry, len(entries)),
		byName:  make(map[string][]int),
	}

	for i, e := range entries {
		index.entries[i] = indexedEntry{entry: e, lower: strings.ToLower(e.Filename)}
	}

	sort.SliceStable(index.entries, func(i, j int) bool {
		return index.entries[i].entry.UploadDate.After(index.entries[j].entry.UploadDate)
	})

	for i, e := range index.entries {
		index.byName[e.lower] = append(index.byName[e.lower], i)
	}

	return index
}

// Len returns the number of indexed entries, duplicates included
func (ci *CatalogIndex) Len() int {
	return len(ci.entries)
}

// Entries returns all entries, most recent first
func (ci *CatalogIndex) Entries() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(ci.entries))
	for i, e := range ci.entries {
		out[i] = e.entry
	}
	return out
}

// Recent returns up to n entries, most recent first
func (ci *CatalogIndex) Recent(n int) []models.CatalogEntry {
	if n <= 0 || n > len(ci.entries) {
		n = len(ci.entries)
	}
	out := make([]models.CatalogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = ci.entries[i].entry
	}
	return out
}

// ByFilename returns every entry whose name equals filename ignoring case
func (ci *CatalogIndex) ByFilename(filename string) []models.CatalogEntry {
	positions := ci.byName[strings.ToLower(filename)]
	out := make([]models.CatalogEntry, len(positions))
	for i, pos := range positions {
		out[i] = ci.entries[pos].entry
	}
	return out
}

// Stats returns summary statistics about the index
func (ci *CatalogIndex) Stats() IndexStats {
	stats := IndexStats{
		TotalEntries:    len(ci.entries),
		UniqueFilenames: len(ci.byName),
	}
	for _, positions := range ci.byName {
		if len(positions) > 1 {
			stats.DuplicatedFilenames++
		}
	}
	if len(ci.entries) > 0 {
		newest := ci.entries[0].entry.UploadDate
		oldest := ci.entries[len(ci.entries)-1].entry.UploadDate
		stats.Newest = &newest
		stats.Oldest = &oldest
	}
	return stats
}

// IndexStats contains statistics about a catalog index
type IndexStats struct {
	TotalEntries        int        `json:"total_entries"`
	UniqueFilenames     int        `json:"unique_filenames"`
	DuplicatedFilenames int        `json:"duplicated_filenames"`
	Newest              *time.Time `json:"newest,omitempty"`
	Oldest              *time.Time `json:"oldest,omitempty"`
}
