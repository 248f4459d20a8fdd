// Package enrich annotates new literature records with model-generated
// relevance scores, summaries, and data type tags. A two-tier escalation
// policy sends every record to a fast model first and consults a stronger
// model only when the fast answer is malformed, failed, or lands in the
// uncertainty band.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
)

// AnnotationRequest carries the record context given to a provider.
type AnnotationRequest struct {
	// Title is the article title.
	Title string

	// Journal is the journal name, for venue context.
	Journal string

	// MeshHeadings is the display form of the MeSH annotations.
	MeshHeadings string

	// Text is the sanitized text view: full-text sections when available,
	// otherwise the abstract.
	Text string

	// FullText reports whether Text was built from full text.
	FullText bool
}

// Annotation is the structured result returned by a provider. Field names
// match the JSON schema sent to the models.
type Annotation struct {
	RelevanceScore *int     `json:"RelevanceScore"`
	WhyRelevant    string   `json:"WhyRelevant"`
	StudySummary   string   `json:"StudySummary"`
	Methods        []string `json:"Methods"`
	KeyFindings    []string `json:"KeyFindings"`
	DataTypes      []string `json:"DataTypes"`
}

// Provider produces an annotation for a single record.
type Provider interface {
	// Annotate returns the structured annotation for the request, or an
	// error. Malformed payloads surface as *ParseError, provider failures
	// as *APIError.
	Annotate(ctx context.Context, req AnnotationRequest) (*Annotation, error)

	// Provider returns the provider name.
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// parseAnnotation decodes and validates a provider's JSON payload. The
// score must be present and inside [0, 100]; everything else is optional.
func parseAnnotation(provider string, payload []byte) (*Annotation, error) {
	var ann Annotation
	if err := json.Unmarshal(payload, &ann); err != nil {
		return nil, &ParseError{Provider: provider, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if ann.RelevanceScore == nil {
		return nil, &ParseError{Provider: provider, Reason: "missing RelevanceScore"}
	}
	if score := *ann.RelevanceScore; score < 0 || score > 100 {
		return nil, &ParseError{Provider: provider, Reason: fmt.Sprintf("RelevanceScore %d out of range", score)}
	}
	return &ann, nil
}
