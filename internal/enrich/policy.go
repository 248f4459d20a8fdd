package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/oncospatial/litsync/internal/domain"
)

const (
	// DefaultBandMin and DefaultBandMax bound the uncertainty band,
	// inclusive on both ends. A fast-tier score inside the band is not
	// trusted and triggers escalation to the strong tier.
	DefaultBandMin = 70
	DefaultBandMax = 84

	// DefaultConcurrency is the number of records annotated in parallel.
	DefaultConcurrency = 4
)

// EscalatorConfig configures the two-tier escalation policy.
type EscalatorConfig struct {
	// Fast is the cheap first-pass provider. Required.
	Fast Provider

	// Strong is the escalation provider. Required.
	Strong Provider

	// BandMin and BandMax bound the uncertainty band, inclusive. Both
	// default when both are zero.
	BandMin int
	BandMax int

	// Concurrency bounds parallel annotation. Defaults to
	// DefaultConcurrency if zero.
	Concurrency int

	// Logger receives per-record escalation decisions.
	Logger zerolog.Logger
}

// Escalator drives the two-tier annotation policy: every record goes to
// the fast provider first, and the strong provider is consulted at most
// once, only when the fast answer failed, was malformed, or scored inside
// the uncertainty band. A strong-tier answer is accepted regardless of
// its score. When both tiers fail for reasons other than quota, the
// record degrades to a low-confidence annotation instead of being
// dropped.
//
// Quota exhaustion or credential rejection at either tier aborts
// immediately and propagates to the caller; work already completed is
// preserved.
type Escalator struct {
	fast        Provider
	strong      Provider
	bandMin     int
	bandMax     int
	concurrency int
	logger      zerolog.Logger
}

// NewEscalator creates an Escalator from the config.
func NewEscalator(cfg EscalatorConfig) *Escalator {
	bandMin, bandMax := cfg.BandMin, cfg.BandMax
	if bandMin == 0 && bandMax == 0 {
		bandMin, bandMax = DefaultBandMin, DefaultBandMax
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Escalator{
		fast:        cfg.Fast,
		strong:      cfg.Strong,
		bandMin:     bandMin,
		bandMax:     bandMax,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// Enriched pairs a record with its accepted annotation.
type Enriched struct {
	Record domain.Record
	Fields *domain.EnrichedFields
}

// Enrich annotates a single record under the escalation policy. The
// returned error is non-nil only for quota exhaustion, credential
// rejection, or context cancellation; every other failure mode degrades
// to a low-confidence annotation.
func (e *Escalator) Enrich(ctx context.Context, rec domain.Record) (*domain.EnrichedFields, error) {
	req := AnnotationRequest{
		Title:        rec.Title,
		Journal:      rec.Journal,
		MeshHeadings: rec.MeshHeadings,
		Text:         rec.AIText,
		FullText:     rec.FullTextUsed,
	}
	logger := e.logger.With().Str("pmid", rec.PMID).Logger()

	ann, err := e.fast.Annotate(ctx, req)
	if err == nil {
		score := *ann.RelevanceScore
		if !e.inBand(score) {
			return e.buildFields(ann, e.fast, false), nil
		}
		logger.Debug().Int("score", score).Msg("score in uncertainty band, escalating")
	} else {
		if stop := stopError(ctx, err); stop != nil {
			return nil, stop
		}
		logger.Warn().Err(err).Str("model", e.fast.Model()).Msg("fast tier failed, escalating")
	}

	ann, err = e.strong.Annotate(ctx, req)
	if err != nil {
		if stop := stopError(ctx, err); stop != nil {
			return nil, stop
		}
		logger.Warn().Err(err).Str("model", e.strong.Model()).Msg("both tiers failed, keeping degraded record")
		return &domain.EnrichedFields{
			Confidence: domain.ConfidenceLow,
			Escalated:  true,
		}, nil
	}

	return e.buildFields(ann, e.strong, true), nil
}

// EnrichBatch annotates records concurrently, preserving input order in
// the result. On quota exhaustion the remaining work is cancelled and the
// annotations completed so far are returned alongside the error.
func (e *Escalator) EnrichBatch(ctx context.Context, records []domain.Record) ([]Enriched, error) {
	results := make([]*domain.EnrichedFields, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			fields, err := e.Enrich(gctx, rec)
			if err != nil {
				return err
			}
			results[i] = fields
			return nil
		})
	}
	err := g.Wait()

	out := make([]Enriched, 0, len(records))
	for i, rec := range records {
		if results[i] != nil {
			out = append(out, Enriched{Record: rec, Fields: results[i]})
		}
	}
	return out, err
}

// inBand reports whether the score lies inside the uncertainty band,
// inclusive on both ends.
func (e *Escalator) inBand(score int) bool {
	return score >= e.bandMin && score <= e.bandMax
}

// buildFields converts an accepted annotation into the domain shape.
func (e *Escalator) buildFields(ann *Annotation, provider Provider, escalated bool) *domain.EnrichedFields {
	dataTypes := NormalizeDataTypes(ann.DataTypes)
	SortDataTypes(dataTypes)

	return &domain.EnrichedFields{
		RelevanceScore: ann.RelevanceScore,
		Justification:  ann.WhyRelevant,
		Summary:        ann.StudySummary,
		Methods:        strings.Join(ann.Methods, "; "),
		KeyFindings:    strings.Join(ann.KeyFindings, "\n"),
		DataTypes:      dataTypes,
		Confidence:     e.deriveConfidence(*ann.RelevanceScore, escalated, provider),
		Model:          provider.Model(),
		Escalated:      escalated,
	}
}

// deriveConfidence grades trust in an accepted annotation. A strong-tier
// score still inside the uncertainty band is Ambiguous; otherwise a score
// above the band is Medium and anything else is Low. The fullText signal
// is folded in by the caller via the request, so only the score path is
// graded here.
func (e *Escalator) deriveConfidence(score int, escalated bool, provider Provider) domain.Confidence {
	switch {
	case escalated && e.inBand(score):
		return domain.ConfidenceAmbiguous
	case score > e.bandMax:
		if escalated {
			return domain.ConfidenceHigh
		}
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// stopError returns the error that must halt the batch, or nil when the
// failure can be absorbed by the escalation policy. Quota exhaustion,
// credential rejection, and context cancellation halt; everything else
// is absorbed.
func stopError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrAuthFailed) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
