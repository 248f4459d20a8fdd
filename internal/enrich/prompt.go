package enrich

import (
	"fmt"
	"strings"
)

// systemPrompt frames the annotation task. The JSON contract is restated
// here even when a provider enforces a response schema, since schema
// support varies across providers.
const systemPrompt = `You are a cancer genomics literature curator with deep expertise in spatial and single-cell profiling of solid tumors. Given one article, assess how relevant it is to spatial transcriptomics and single-cell analysis of prostate and other cancers.

Respond with a single JSON object and nothing else, using exactly these keys:
- "RelevanceScore": integer 0-100, how relevant the study is to the focus area
- "WhyRelevant": one or two sentences justifying the score
- "StudySummary": two to four sentences summarizing the study
- "Methods": array of short method names used in the study
- "KeyFindings": array of the main findings, one short sentence each
- "DataTypes": array of assay/data type names generated or analyzed (e.g. "scRNA-seq", "spatial transcriptomics", "WES")

Score conservatively: reviews and perspectives without primary data rarely exceed 60. Do not invent data types the text does not support.`

// buildUserPrompt assembles the per-record prompt from the request fields.
// Absent fields are omitted rather than sent empty.
func buildUserPrompt(req AnnotationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", req.Journal)
	}
	if req.MeshHeadings != "" {
		fmt.Fprintf(&b, "MeSH: %s\n", req.MeshHeadings)
	}

	b.WriteString("\n")
	if req.FullText {
		b.WriteString("Full-text sections:\n")
	} else {
		b.WriteString("Abstract:\n")
	}
	if req.Text != "" {
		b.WriteString(req.Text)
	} else {
		b.WriteString("(no text available; judge from the title and MeSH terms)")
	}

	return b.String()
}

// annotationSchema is the JSON schema sent to providers that support
// constrained decoding.
var annotationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"RelevanceScore": map[string]any{"type": "integer"},
		"WhyRelevant":    map[string]any{"type": "string"},
		"StudySummary":   map[string]any{"type": "string"},
		"Methods":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"KeyFindings":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"DataTypes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"RelevanceScore", "WhyRelevant", "StudySummary", "Methods", "KeyFindings", "DataTypes"},
}
