package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"segmentation-tracker/internal/models"
)

// PrefixVariant is one naming convention a batch identifier may appear under.
// Template contains a single %s replaced by the batch suffix; an empty
// Template stands for the full batch identifier.
type PrefixVariant struct {
	Name     string
	Template string
	Anchored bool
}

var prefixVariants = []PrefixVariant{
	{Name: "masks_batch", Template: "masks_batch_%s"},
	{Name: "masks_Batch", Template: "masks_Batch_%s"},
	{Name: "batch", Template: "batch_%s"},
	{Name: "Batch", Template: "Batch_%s"},
	{Name: "batch_copy", Template: "batch_%s ("},
	{Name: "Batch_copy", Template: "Batch_%s ("},
	{Name: "exact_batch", Template: "batch_%s", Anchored: true},
	{Name: "exact_suffix", Template: "%s", Anchored: true},
	{Name: "identifier", Template: ""},
}

// PrefixVariants returns the naming conventions in probe order
func PrefixVariants() []PrefixVariant {
	return append([]PrefixVariant(nil), prefixVariants...)
}

// Pattern is one (prefix variant x extension) probe for a batch.
type Pattern struct {
	Variant   string
	Extension string
	Text      string
	Anchored  bool
}

// String renders the probe as the equivalent case-insensitive regular expression
func (p Pattern) String() string {
	expr := regexp.QuoteMeta(p.Text)
	if p.Anchored {
		expr = "^" + expr + "$"
	}
	return "(?i)" + expr
}

// Regexp compiles the probe. Matching itself never goes through regexp; this
// exists for diagnostics and for checking the probe semantics in tests.
func (p Pattern) Regexp() *regexp.Regexp {
	return regexp.MustCompile(p.String())
}

// Patterns expands a batch identifier into the full probe table, in
// variant-major order. Duplicates (for example masks_batch_ and
// masks_Batch_ once case is ignored) are kept so that every combination
// is visible.
func Patterns(batchID string, extensions []string) []Pattern {
	id := strings.TrimSpace(batchID)
	suffix := models.BatchSuffix(id)

	patterns := make([]Pattern, 0, len(prefixVariants)*len(extensions))
	for _, variant := range prefixVariants {
		base := id
		if variant.Template != "" {
			base = fmt.Sprintf(variant.Template, suffix)
		}
		for _, ext := range extensions {
			patterns = append(patterns, Pattern{
				Variant:   variant.Name,
				Extension: ext,
				Text:      base + ext,
				Anchored:  variant.Anchored,
			})
		}
	}
	return patterns
}

// probe is the case-folded, deduplicated form of a Pattern used for matching
type probe struct {
	text     string
	anchored bool
	boundary bool
}

type probeSet struct {
	exact     map[string]bool
	substring []probe
}

func compileProbes(patterns []Pattern, strict bool) *probeSet {
	set := &probeSet{exact: make(map[string]bool)}
	seen := make(map[string]bool)

	for _, p := range patterns {
		text := strings.ToLower(p.Text)
		if text == "" {
			continue
		}
		if p.Anchored {
			set.exact[text] = true
			continue
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		set.substring = append(set.substring, probe{
			text:     text,
			boundary: strict && isAlnum(text[len(text)-1]),
		})
	}
	return set
}

// matches reports whether a lowercased filename satisfies any probe
func (ps *probeSet) matches(name string) bool {
	if ps.exact[name] {
		return true
	}
	for _, p := range ps.substring {
		if p.boundary {
			if containsBounded(name, p.text) {
				return true
			}
			continue
		}
		if strings.Contains(name, p.text) {
			return true
		}
	}
	return false
}

// containsBounded finds needle in s such that the next byte is not a letter or digit.
func containsBounded(s, needle string) bool {
	for start := 0; start <= len(s)-len(needle); {
		i := strings.Index(s[start:], needle)
		if i < 0 {
			return false
		}
		end := start + i + len(needle)
		if end == len(s) || !isAlnum(s[end]) {
			return true
		}
		start += i + 1
	}
	return false
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
