package matcher

import (
	"regexp"
	"sort"
	"strings"
)

// Identifier extraction runs in priority order: F-suffixed, T-prefixed,
// then plain numeric forms.
var batchIDExtractors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)batch_(\d+F)(?:[^0-9a-z]|$)`),
	regexp.MustCompile(`(?i)batch_(T\d+)`),
	regexp.MustCompile(`(?i)batch[_\-]?(\d+)`),
}

// ExtractBatchID recovers the canonical batch identifier named by a catalog
// filename, e.g. "Batch_5 (2).zip" -> "batch_5".
func ExtractBatchID(filename string) (string, bool) {
	for _, re := range batchIDExtractors {
		if m := re.FindStringSubmatch(filename); m != nil {
			return "batch_" + strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// ExtractedGroup is a set of catalog filenames naming the same batch
type ExtractedGroup struct {
	BatchID   string   `json:"batch_id"`
	Filenames []string `json:"filenames"`
}

// GroupByExtractedID groups the index's unique filenames by the batch
// identifier they name. Filenames naming no batch are returned separately.
func GroupByExtractedID(index *CatalogIndex) ([]ExtractedGroup, []string) {
	groups := make(map[string][]string)
	var unnamed []string
	seen := make(map[string]bool)

	for _, e := range index.entries {
		name := e.entry.Filename
		if seen[name] {
			continue
		}
		seen[name] = true

		id, ok := ExtractBatchID(name)
		if !ok {
			unnamed = append(unnamed, name)
			continue
		}
		groups[id] = append(groups[id], name)
	}

	out := make([]ExtractedGroup, 0, len(groups))
	for id, names := range groups {
		out = append(out, ExtractedGroup{BatchID: id, Filenames: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })

	return out, unnamed
}
