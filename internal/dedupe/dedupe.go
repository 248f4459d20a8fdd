// Package dedupe builds the identity index over the sync target's stored
// entries and classifies freshly fetched records against it.
package dedupe

import (
	"strings"
	"time"

	"github.com/oncospatial/litsync/internal/domain"
)

// StoredEntry is the identity projection of one page in the sync target.
type StoredEntry struct {
	// PageID is the target's opaque page identifier.
	PageID string

	// DedupeKey is the identity key stored on the page, when present.
	DedupeKey string

	// PMID and DOI are the identifiers as stored on the page. They back
	// key derivation for legacy pages created before the key property
	// existed.
	PMID string
	DOI  string

	// LastChecked is the page's last verification timestamp, when set.
	LastChecked *time.Time
}

// ResolveKey returns the entry's identity key. A stored key is preferred
// but re-canonicalized, since pages written by earlier tooling may carry
// uppercase or resolver-URL DOIs; without a stored key the identifiers
// run through the same derivation applied to fetched records.
func (e *StoredEntry) ResolveKey() (string, error) {
	if k := strings.TrimSpace(e.DedupeKey); k != "" {
		if strings.HasPrefix(k, "PMID:") {
			return k, nil
		}
		if c := domain.CanonicalDOI(k); c != "" {
			return c, nil
		}
		return k, nil
	}
	return domain.ResolveDedupeKey(e.DOI, e.PMID)
}

// Index maps a dedupe key to the page holding that record.
type Index map[string]string

// BuildIndex builds the identity index from stored entries. When two
// pages share a key the later entry wins, and the key is reported in the
// duplicates list so the caller can log the conflict. Entries with no
// usable identifier are counted but otherwise ignored; a malformed stored
// page must not abort a run.
func BuildIndex(entries []StoredEntry) (Index, []string, int) {
	index := make(Index, len(entries))
	var duplicates []string
	unkeyed := 0

	for _, e := range entries {
		key, err := e.ResolveKey()
		if err != nil {
			unkeyed++
			continue
		}
		if _, exists := index[key]; exists {
			duplicates = append(duplicates, key)
		}
		index[key] = e.PageID
	}
	return index, duplicates, unkeyed
}

// Match pairs a fetched record with the existing page it matched.
type Match struct {
	Record domain.Record
	PageID string
}

// Invalid pairs a fetched record with the reason it could not be keyed.
type Invalid struct {
	Record domain.Record
	Err    error
}

// Result partitions a fetched batch. The four lists are disjoint, cover
// every input record exactly once, and preserve the input order within
// each list.
type Result struct {
	// ToCreate holds records whose key is absent from the index.
	ToCreate []domain.Record

	// ToUpdate holds records whose key matched an existing page.
	ToUpdate []Match

	// Duplicates holds later in-batch occurrences of a key already seen
	// earlier in the same batch; the first occurrence decides the action.
	Duplicates []domain.Record

	// Invalid holds records that carry no usable identifier.
	Invalid []Invalid
}

// Classify partitions fetched records against the stored index. A record
// with no usable identifier lands in Invalid without affecting the rest
// of the batch.
func Classify(records []domain.Record, index Index) Result {
	var result Result
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		key, err := rec.DedupeKey()
		if err != nil {
			result.Invalid = append(result.Invalid, Invalid{Record: rec, Err: err})
			continue
		}
		if _, dup := seen[key]; dup {
			result.Duplicates = append(result.Duplicates, rec)
			continue
		}
		seen[key] = struct{}{}

		if pageID, exists := index[key]; exists {
			result.ToUpdate = append(result.ToUpdate, Match{Record: rec, PageID: pageID})
		} else {
			result.ToCreate = append(result.ToCreate, rec)
		}
	}
	return result
}
