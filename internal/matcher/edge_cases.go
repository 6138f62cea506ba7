package matcher

import (
	"sort"
	"time"

	"segmentation-tracker/internal/models"
)

// AnomalyDetector reports catalog situations the permissive matcher cannot
// resolve on its own.
type AnomalyDetector struct {
	Config *MatchingConfig
}

// NewAnomalyDetector creates a new anomaly detector
func NewAnomalyDetector(config *MatchingConfig) *AnomalyDetector {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &AnomalyDetector{Config: config}
}

// DuplicateGroup is a filename uploaded more than once
type DuplicateGroup struct {
	Filename    string      `json:"filename"`
	Count       int         `json:"count"`
	UploadDates []time.Time `json:"upload_dates"`
}

// AmbiguousFile is a file claimed by more than one batch
type AmbiguousFile struct {
	Filename string   `json:"filename"`
	BatchIDs []string `json:"batch_ids"`
}

// AnomalyReport collects everything found in one pass
type AnomalyReport struct {
	Duplicates []DuplicateGroup      `json:"duplicates"`
	Ambiguous  []AmbiguousFile       `json:"ambiguous"`
	Orphans    []models.CatalogEntry `json:"orphans"`
}

// IsEmpty reports whether no anomaly was found
func (r *AnomalyReport) IsEmpty() bool {
	return len(r.Duplicates) == 0 && len(r.Ambiguous) == 0 && len(r.Orphans) == 0
}

// DetectDuplicates lists filenames that appear more than once in the catalog
func (ad *AnomalyDetector) DetectDuplicates(index *CatalogIndex) []DuplicateGroup {
	byExactName := make(map[string][]time.Time)
	var order []string
	for _, e := range index.entries {
		name := e.entry.Filename
		if _, ok := byExactName[name]; !ok {
			order = append(order, name)
		}
		byExactName[name] = append(byExactName[name], e.entry.UploadDate)
	}

	var groups []DuplicateGroup
	for _, name := range order {
		dates := byExactName[name]
		if len(dates) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Filename: name, Count: len(dates), UploadDates: dates})
	}
	return groups
}

// DetectAmbiguous lists files that matched more than one batch
func (ad *AnomalyDetector) DetectAmbiguous(results []*MatchResult) []AmbiguousFile {
	claims := make(map[string][]string)
	for _, r := range results {
		for _, f := range r.Files {
			claims[f.Filename] = append(claims[f.Filename], r.BatchID)
		}
	}

	var ambiguous []AmbiguousFile
	for name, ids := range claims {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		ambiguous = append(ambiguous, AmbiguousFile{Filename: name, BatchIDs: ids})
	}
	sort.Slice(ambiguous, func(i, j int) bool { return ambiguous[i].Filename < ambiguous[j].Filename })
	return ambiguous
}

// DetectOrphans lists catalog files that matched no batch, most recent first
func (ad *AnomalyDetector) DetectOrphans(index *CatalogIndex, results []*MatchResult) []models.CatalogEntry {
	claimed := make(map[string]bool)
	for _, r := range results {
		for _, f := range r.Files {
			claimed[f.Filename] = true
		}
	}

	var orphans []models.CatalogEntry
	seen := make(map[string]bool)
	for _, e := range index.entries {
		name := e.entry.Filename
		if claimed[name] || seen[name] {
			continue
		}
		seen[name] = true
		orphans = append(orphans, e.entry)
	}
	return orphans
}

// Analyze runs every detector
func (ad *AnomalyDetector) Analyze(index *CatalogIndex, results []*MatchResult) *AnomalyReport {
	return &AnomalyReport{
		Duplicates: ad.DetectDuplicates(index),
		Ambiguous:  ad.DetectAmbiguous(results),
		Orphans:    ad.DetectOrphans(index, results),
	}
}
