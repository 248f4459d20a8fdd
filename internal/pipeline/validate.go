package pipeline

import (
	"fmt"
	"strings"

	"github.com/oncospatial/litsync/internal/domain"
)

// Deviation thresholds for the fetch-volume sanity check. A fetch far
// below or above the historical median suggests a broken query or an
// upstream indexing change, not a real shift in the literature.
const (
	volumeDropFactor = 0.5
	volumeJumpFactor = 2.0
)

// volumeWarnings compares the fetched count against the historical
// median. Zero results and large deviations produce operator warnings;
// the run always continues.
func volumeWarnings(fetched int, median float64) []string {
	var warnings []string
	if fetched == 0 {
		warnings = append(warnings, "search returned zero results; query may be broken")
		return warnings
	}
	if median <= 0 {
		return warnings
	}
	if float64(fetched) < volumeDropFactor*median {
		warnings = append(warnings, fmt.Sprintf(
			"fetched %d records, under half the historical median of %.0f", fetched, median))
	}
	if float64(fetched) > volumeJumpFactor*median {
		warnings = append(warnings, fmt.Sprintf(
			"fetched %d records, over twice the historical median of %.0f", fetched, median))
	}
	return warnings
}

// goldSetWarnings checks that every gold-set landmark (a PMID or DOI
// known to match the query) is present in the fetch. A missing landmark
// usually means the query silently drifted.
func goldSetWarnings(records []domain.Record, goldSet []string) []string {
	pmids := make(map[string]struct{}, len(records))
	dois := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.PMID != "" {
			pmids[rec.PMID] = struct{}{}
		}
		if d := domain.CanonicalDOI(rec.DOI); d != "" {
			dois[d] = struct{}{}
		}
	}

	var warnings []string
	for _, item := range goldSet {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if d := domain.CanonicalDOI(item); d != "" {
			if _, ok := dois[d]; !ok {
				warnings = append(warnings, fmt.Sprintf("gold-set DOI %s missing from fetch", item))
			}
			continue
		}
		if _, ok := pmids[item]; !ok {
			warnings = append(warnings, fmt.Sprintf("gold-set PMID %s missing from fetch", item))
		}
	}
	return warnings
}
