// Package domain defines the core types for the literature sync pipeline:
// bibliographic records, AI-derived annotations, and the dedupe key policy
// that gives every record a stable identity across runs.
package domain

import (
	"strings"
	"time"
)

// doiPrefixes are URL and scheme prefixes stripped during DOI canonicalization.
// Order matters: longer prefixes are listed before their substrings.
var doiPrefixes = []string{
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
	"doi:",
}

// CanonicalDOI normalizes a DOI for identity comparison: surrounding
// whitespace and any URL/scheme prefix are stripped and the remainder is
// lowercased. DOIs are case-insensitive per the DOI handbook, and upstream
// sources disagree on whether they emit bare DOIs or resolver URLs, so both
// forms must canonicalize to the same key. Returns "" for empty or
// placeholder input.
func CanonicalDOI(doi string) string {
	d := strings.TrimSpace(doi)
	lower := strings.ToLower(d)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	// Real DOIs always start with the "10." directory indicator. Anything
	// else is a placeholder or extraction artifact and cannot be trusted
	// as an identity key.
	if !strings.HasPrefix(lower, "10.") {
		return ""
	}
	return lower
}

// ResolveDedupeKey derives the stable identity key for a record.
// A usable DOI wins; otherwise the PubMed ID is used with a "PMID:" prefix
// so the two namespaces can never collide. The same inputs always produce
// the same key.
//
// Returns ErrMissingIdentifier (wrapped) when neither identifier is
// present; that indicates an upstream extraction bug and aborts processing
// of the single record only, never the batch.
func ResolveDedupeKey(doi, pmid string) (string, error) {
	if d := CanonicalDOI(doi); d != "" {
		return d, nil
	}
	if p := strings.TrimSpace(pmid); p != "" {
		return "PMID:" + p, nil
	}
	return "", &MissingIdentifierError{DOI: doi, PMID: pmid}
}

// Record is one literature item after normalization, merged from the
// summary and detail views of the upstream source.
type Record struct {
	// PMID is the primary source identifier (always present after
	// normalization).
	PMID string

	// DOI is the digital object identifier as reported by the source.
	// May be empty. Canonicalization happens in ResolveDedupeKey, not
	// here; the reported form is preserved for display.
	DOI string

	// PMCID is the PubMed Central identifier when the article has an
	// open-access deposit; empty otherwise. Used to locate full text.
	PMCID string

	Title   string
	Journal string

	// PubDateRaw is the publication date exactly as reported. Always
	// retained; PubDate is only set when the raw form was parseable.
	PubDateRaw string
	PubDate    *time.Time

	// Abstract is empty (never absent) when the source has none.
	Abstract string

	// Authors is the ordered author name list.
	Authors []string

	// PublicationTypes holds the source's publication type labels.
	PublicationTypes []string

	// MeshHeadings is the full heading list with qualifiers,
	// semicolon-delimited for display.
	MeshHeadings string

	// MeshTerms and MajorMesh are the descriptor names, with MajorMesh
	// restricted to major-topic descriptors.
	MeshTerms []string
	MajorMesh []string

	// GEOAccessions and SRAAccessions are dataset accessions harvested
	// from structured metadata and reference citations.
	GEOAccessions []string
	SRAAccessions []string

	// URL is the canonical source page for the record.
	URL string

	// RawPayload is the opaque source payload (article XML) retained for
	// downstream enrichment. Never written to the sync target.
	RawPayload string

	// AIText is the sanitized text view used for AI calls: selected
	// full-text sections when available, otherwise the abstract. The
	// canonical fields above are never modified by sanitization.
	AIText string

	// FullTextUsed reports whether AIText was built from full text
	// rather than the abstract alone.
	FullTextUsed bool
}

// DedupeKey returns the record's stable identity key (see ResolveDedupeKey).
func (r *Record) DedupeKey() (string, error) {
	return ResolveDedupeKey(r.DOI, r.PMID)
}

// Confidence categorizes how much the pipeline trusts an AI annotation.
type Confidence string

const (
	ConfidenceLow       Confidence = "Low"
	ConfidenceMedium    Confidence = "Medium"
	ConfidenceAmbiguous Confidence = "Ambiguous"
	ConfidenceHigh      Confidence = "High"
)

// EnrichedFields holds AI-derived annotations for a record. Created only
// for records classified as new; existing records bypass enrichment
// entirely for cost control.
type EnrichedFields struct {
	// RelevanceScore is the 0-100 topical relevance estimate. Nil when
	// enrichment failed to produce a parseable score; the record is
	// still synced.
	RelevanceScore *int

	// Justification is the model's short explanation of the score.
	Justification string

	// Summary is a short, sentence-bounded study summary.
	Summary string

	// Methods is the semicolon-delimited methods list.
	Methods string

	// KeyFindings is a short key-findings text.
	KeyFindings string

	// DataTypes is the controlled-vocabulary data type set, with
	// unrecognized tokens preserved verbatim.
	DataTypes []string

	Confidence Confidence

	// Model records which underlying model produced the accepted result.
	Model string

	// Escalated reports whether the strong model was consulted.
	Escalated bool
}

// Score returns the relevance score and whether one is present.
func (e *EnrichedFields) Score() (int, bool) {
	if e == nil || e.RelevanceScore == nil {
		return 0, false
	}
	return *e.RelevanceScore, true
}
