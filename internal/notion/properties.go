package notion

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oncospatial/litsync/internal/domain"
)

// maxTextLength is the per-field character ceiling for rich text content.
// Longer values make the API reject the whole page with a 400.
const maxTextLength = 2000

// truncate caps text at the rich text field ceiling. The ceiling is in
// characters, not bytes, so the cut lands on a rune boundary.
func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxTextLength {
		return text
	}
	return string([]rune(text)[:maxTextLength])
}

// sanitizeOption prepares a value for use as a multi-select option name.
// Commas are reserved as option separators by the API, so embedded commas
// are rewritten rather than silently splitting the value.
func sanitizeOption(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), ",", " -")
}

// titleProp builds a title property.
func titleProp(text string) map[string]any {
	return map[string]any{
		"title": []any{
			map[string]any{"text": map[string]any{"content": truncate(text)}},
		},
	}
}

// richTextProp builds a rich_text property.
func richTextProp(text string) map[string]any {
	return map[string]any{
		"rich_text": []any{
			map[string]any{"text": map[string]any{"content": truncate(text)}},
		},
	}
}

// multiSelectProp builds a multi_select property with sanitized options.
func multiSelectProp(values []string) map[string]any {
	options := make([]any, 0, len(values))
	for _, v := range values {
		if s := sanitizeOption(v); s != "" {
			options = append(options, map[string]any{"name": s})
		}
	}
	return map[string]any{"multi_select": options}
}

// dateProp builds a date property.
func dateProp(t time.Time) map[string]any {
	return map[string]any{
		"date": map[string]any{"start": t.UTC().Format(time.RFC3339)},
	}
}

// PageProperties converts a record and its optional annotation to the
// target's page property format. Annotation properties are included only
// when an annotation is present, so an update of an existing page never
// clears model-generated fields it did not produce.
func PageProperties(rec domain.Record, fields *domain.EnrichedFields, now time.Time) map[string]any {
	title := rec.Title
	if title == "" {
		title = rec.PMID
	}
	if title == "" {
		title = "Untitled"
	}

	props := map[string]any{
		"Title":       titleProp(title),
		"LastChecked": dateProp(now),
	}

	if key, err := rec.DedupeKey(); err == nil {
		props["DedupeKey"] = richTextProp(key)
	}

	setRichText := func(name, value string) {
		if value != "" {
			props[name] = richTextProp(value)
		}
	}
	setRichText("DOI", rec.DOI)
	setRichText("PMID", rec.PMID)
	setRichText("Journal", rec.Journal)
	setRichText("Abstract", rec.Abstract)
	setRichText("Authors", strings.Join(rec.Authors, ", "))
	setRichText("MeshHeadingList", rec.MeshHeadings)
	setRichText("PublicationTypes", strings.Join(rec.PublicationTypes, "; "))
	setRichText("GEO_List", strings.Join(rec.GEOAccessions, "; "))
	setRichText("SRA_Project", strings.Join(rec.SRAAccessions, "; "))

	if rec.URL != "" {
		props["URL"] = map[string]any{"url": rec.URL}
	}
	if len(rec.MeshTerms) > 0 {
		props["MeSH_Terms"] = multiSelectProp(rec.MeshTerms)
	}
	if len(rec.MajorMesh) > 0 {
		props["Major_MeSH"] = multiSelectProp(rec.MajorMesh)
	}
	if rec.PubDate != nil {
		props["PubDate"] = dateProp(*rec.PubDate)
	}

	if fields != nil {
		if score, ok := fields.Score(); ok {
			props["RelevanceScore"] = map[string]any{"number": score}
		}
		if fields.Confidence != "" {
			props["PipelineConfidence"] = multiSelectProp([]string{string(fields.Confidence)})
		}
		props["FullTextUsed"] = map[string]any{"checkbox": rec.FullTextUsed}
		props["Escalated"] = map[string]any{"checkbox": fields.Escalated}
		setRichText("StudySummary", fields.Summary)
		setRichText("WhyRelevant", fields.Justification)
		setRichText("Methods", fields.Methods)
		setRichText("KeyFindings", fields.KeyFindings)
		setRichText("EnrichmentModel", fields.Model)
		if len(fields.DataTypes) > 0 {
			props["DataTypes"] = multiSelectProp(fields.DataTypes)
		}
	}

	return props
}
