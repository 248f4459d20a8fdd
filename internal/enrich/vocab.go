package enrich

import (
	"sort"
	"strings"
)

// KnownDataTypes is the controlled vocabulary for assay and data type
// tags, in canonical form. Model output is folded onto these names;
// tokens with no match are kept verbatim so new assay names surface
// instead of vanishing.
var KnownDataTypes = []string{
	"scrna-seq",
	"snrna-seq",
	"scatac-seq",
	"snatac-seq",
	"scdna-seq",
	"spatial transcriptomics",
	"10x visium",
	"xenium",
	"cosmx",
	"geomx",
	"merfish",
	"seqfish",
	"slide-seq",
	"cite-seq",
	"multiome",
	"bulk rna-seq",
	"chip-seq",
	"atac-seq",
	"wgs",
	"wes",
	"cnv",
	"h&e",
}

// NormalizeDataTypes folds model-reported data type tokens onto the
// controlled vocabulary. Each element is first split on commas and
// semicolons, since models often pack several assays into one string.
// Matching is case-insensitive and tolerant of embellishment in either
// direction ("single-nucleus RNA-seq (snRNA-seq)" matches "snrna-seq").
// Unmatched tokens are kept verbatim, trimmed. The result is
// deduplicated preserving first-occurrence order.
func NormalizeDataTypes(raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))

	for _, field := range raw {
		for _, token := range splitDataTypes(field) {
			trimmed := strings.TrimSpace(token)
			if trimmed == "" {
				continue
			}

			normalized := matchDataType(trimmed)
			dedupeKey := strings.ToLower(normalized)
			if _, dup := seen[dedupeKey]; dup {
				continue
			}
			seen[dedupeKey] = struct{}{}
			out = append(out, normalized)
		}
	}
	return out
}

// splitDataTypes breaks a free-text field on the list separators models
// use interchangeably.
func splitDataTypes(field string) []string {
	return strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

// matchDataType returns the canonical vocabulary entry for a token, or
// the token itself when nothing matches. Exact matches are resolved
// before substring matches so "atac-seq" never folds onto "scatac-seq".
func matchDataType(token string) string {
	lower := strings.ToLower(token)
	for _, known := range KnownDataTypes {
		if lower == known {
			return known
		}
	}
	for _, known := range KnownDataTypes {
		if strings.Contains(lower, known) {
			return known
		}
	}
	for _, known := range KnownDataTypes {
		if strings.Contains(known, lower) {
			return known
		}
	}
	return token
}

// SortDataTypes orders tags with vocabulary entries first (in vocabulary
// order) followed by unknown tags alphabetically, so the controlled part
// of the tag set renders consistently across records.
func SortDataTypes(tags []string) {
	rank := make(map[string]int, len(KnownDataTypes))
	for i, known := range KnownDataTypes {
		rank[known] = i
	}

	sort.SliceStable(tags, func(i, j int) bool {
		ri, iKnown := rank[strings.ToLower(tags[i])]
		rj, jKnown := rank[strings.ToLower(tags[j])]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
		}
	})
}
