// Package normalize merges the summary and detail views of a source
// record into one canonical record and prepares the sanitized text view
// used for AI annotation.
package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/oncospatial/litsync/internal/domain"
	"github.com/oncospatial/litsync/internal/sources/pubmed"
)

// Merge combines a summary record and a detail record for the same PMID.
// Detail fields win where present; summary fields fill the gaps. The
// publication date is parsed from whichever raw date survives the merge,
// and the raw form is always retained.
func Merge(summary, detail domain.Record) domain.Record {
	merged := detail

	if merged.PMID == "" {
		merged.PMID = summary.PMID
	}
	if merged.DOI == "" {
		merged.DOI = summary.DOI
	}
	if merged.PMCID == "" {
		merged.PMCID = summary.PMCID
	}
	if merged.Title == "" {
		merged.Title = summary.Title
	}
	if merged.Journal == "" {
		merged.Journal = summary.Journal
	}
	if merged.PubDateRaw == "" {
		merged.PubDateRaw = summary.PubDateRaw
	}
	if len(merged.Authors) == 0 {
		merged.Authors = summary.Authors
	}
	if len(merged.PublicationTypes) == 0 {
		merged.PublicationTypes = summary.PublicationTypes
	}
	if merged.URL == "" {
		merged.URL = summary.URL
	}

	merged.PubDate = ParsePubDate(merged.PubDateRaw)

	return merged
}

// ApplyFullText sets the record's AI text view from extracted full-text
// sections when any are available, otherwise from the abstract. The
// canonical bibliographic fields are never modified.
func ApplyFullText(rec *domain.Record, ft *pubmed.FullText) {
	if !ft.Empty() {
		rec.AIText = ComposeAIText(ft)
		rec.FullTextUsed = true
		return
	}
	rec.AIText = Sanitize(rec.Abstract)
	rec.FullTextUsed = false
}

// maxSectionLen bounds each full-text section in the AI text view so a
// single long methods section cannot blow the model's input budget.
const maxSectionLen = 6000

// ComposeAIText assembles the labeled AI text view from full-text
// sections. Empty sections are omitted; each section is sanitized and
// truncated independently.
func ComposeAIText(ft *pubmed.FullText) string {
	sections := []struct {
		label string
		text  string
	}{
		{"Abstract", ft.Abstract},
		{"Methods", ft.Methods},
		{"Results", ft.Results},
		{"Data availability", ft.Availability},
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		text := Sanitize(s.text)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > maxSectionLen {
			text = string([]rune(text)[:maxSectionLen])
		}
		parts = append(parts, s.label+": "+text)
	}
	return strings.Join(parts, "\n\n")
}

// Sanitize collapses whitespace runs and strips control characters so the
// text is safe to embed in a prompt and in JSON payloads.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}
