package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeTechnologies trims, transliterates and lower-cases technology
// tags, dropping empties and duplicates while keeping first-seen order.
func NormalizeTechnologies(tags []string) []string {
	// a Caser is stateful, so one per call
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(unidecode.Unidecode(t)), " ")
		t = lower.String(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ProjectSlug builds a URL slug for a submission. The id suffix keeps slugs
// unique when two projects share a name.
func ProjectSlug(name, id string) string {
	base := slug.Make(name)
	if base == "" {
		base = "project"
	}
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		suffix = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return base + "-" + suffix
}
