// Package pipeline orchestrates one sync run: fetch from the literature
// source, classify against the sync target's stored pages, enrich new
// records through the escalation policy, and write the results back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oncospatial/litsync/internal/dedupe"
	"github.com/oncospatial/litsync/internal/domain"
	"github.com/oncospatial/litsync/internal/enrich"
	"github.com/oncospatial/litsync/internal/normalize"
	"github.com/oncospatial/litsync/internal/observability"
	"github.com/oncospatial/litsync/internal/runlog"
	"github.com/oncospatial/litsync/internal/sources/pubmed"
)

// Source is the literature source consumed by the pipeline. Implemented
// by the PubMed client.
type Source interface {
	Search(ctx context.Context, params pubmed.SearchParams) (*pubmed.SearchPage, error)
	Summaries(ctx context.Context, pmids []string) (map[string]domain.Record, error)
	Details(ctx context.Context, pmids []string) (map[string]domain.Record, error)
	FullText(ctx context.Context, pmcid string) (*pubmed.FullText, error)
}

// Target is the sync destination. Implemented by the Notion client.
type Target interface {
	ListEntries(ctx context.Context) ([]dedupe.StoredEntry, error)
	CreatePage(ctx context.Context, rec domain.Record, fields *domain.EnrichedFields) (string, error)
	UpdatePage(ctx context.Context, pageID string, rec domain.Record, fields *domain.EnrichedFields) error
}

// Enricher annotates new records. Implemented by enrich.Escalator.
type Enricher interface {
	EnrichBatch(ctx context.Context, records []domain.Record) ([]enrich.Enriched, error)
}

// Config controls one run.
type Config struct {
	// Tier names the query preset in force, recorded in the run history.
	Tier string

	// Query is the effective source query expression.
	Query string

	// RelDays restricts the fetch to publication dates within the last N
	// days. Zero means no restriction.
	RelDays int

	// MaxResults caps how many new records one run will take on.
	MaxResults int

	// MaxPages bounds search pagination.
	MaxPages int

	// FullText enables full-text retrieval for new records that have an
	// open-access deposit.
	FullText bool

	// DryRun reports what would happen without enriching or writing.
	DryRun bool

	// GoldSet lists identifiers expected in every healthy fetch.
	GoldSet []string

	// HistoricalMedian seeds the volume check until enough run history
	// accumulates.
	HistoricalMedian int
}

// Summary is the outcome of one run.
type Summary struct {
	RunID   string
	Tier    string
	DryRun  bool
	Started time.Time

	// Fetched counts distinct records retrieved from the source.
	Fetched int

	// New and Existing count the classification split.
	New      int
	Existing int

	// Duplicates counts later in-batch occurrences of an already-seen
	// key; Invalid counts records with no usable identifier.
	Duplicates int
	Invalid    int

	// Enriched and Escalated count annotation outcomes for new records.
	Enriched  int
	Escalated int

	// Created, Updated, Skipped, and Failed count sync writes.
	Created int
	Updated int
	Skipped int
	Failed  int

	// Warnings holds operator warnings from upstream sanity checks and
	// degraded phases. The run continued despite them.
	Warnings []string

	// Outcome is succeeded, degraded, or failed.
	Outcome string

	Duration time.Duration
}

// Pipeline wires the collaborators for a run.
type Pipeline struct {
	source   Source
	target   Target
	enricher Enricher
	runs     *runlog.Store
	metrics  *observability.Metrics
	logger   zerolog.Logger
	config   Config
}

// Options carries the collaborators for New. Enricher, Runs, and
// Metrics are optional; a nil Enricher disables the enrichment phase.
type Options struct {
	Source   Source
	Target   Target
	Enricher Enricher
	Runs     *runlog.Store
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// New creates a Pipeline.
func New(cfg Config, opts Options) *Pipeline {
	return &Pipeline{
		source:   opts.Source,
		target:   opts.Target,
		enricher: opts.Enricher,
		runs:     opts.Runs,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		config:   cfg,
	}
}

// Run executes one sync run. A non-nil error means the run aborted on a
// systemic failure (source or target listing unavailable); everything
// per-record is absorbed into the summary instead. The summary is
// returned in both cases.
func (p *Pipeline) Run(ctx context.Context, runID string) (*Summary, error) {
	started := time.Now()
	summary := &Summary{
		RunID:   runID,
		Tier:    p.config.Tier,
		DryRun:  p.config.DryRun,
		Started: started,
		Outcome: "succeeded",
	}
	logger := observability.WithRunContext(p.logger, runID, p.config.Tier)

	if p.metrics != nil {
		p.metrics.RunsStarted.Inc()
	}
	if p.runs != nil {
		if err := p.runs.Begin(ctx, runID, p.config.Tier, p.config.Query, p.config.DryRun); err != nil {
			logger.Warn().Err(err).Msg("failed to record run start")
		}
	}

	err := p.run(ctx, logger, summary)
	summary.Duration = time.Since(started)
	if err != nil {
		summary.Outcome = "failed"
		summary.Warnings = append(summary.Warnings, err.Error())
	}

	p.finish(logger, summary, err)
	return summary, err
}

// run executes the phases; Run wraps it so bookkeeping happens exactly
// once on every exit path.
func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, summary *Summary) error {
	index, err := p.loadIndex(ctx, logger, summary)
	if err != nil {
		return err
	}

	records, err := p.fetch(ctx, logger, index)
	if err != nil {
		return err
	}
	summary.Fetched = len(records)
	if p.metrics != nil {
		p.metrics.RecordsFetched.Add(float64(len(records)))
	}

	p.validateFetch(ctx, logger, summary, records)

	result := dedupe.Classify(records, index)
	summary.New = len(result.ToCreate)
	summary.Existing = len(result.ToUpdate)
	summary.Duplicates = len(result.Duplicates)
	summary.Invalid = len(result.Invalid)
	summary.Skipped += len(result.Invalid) + len(result.Duplicates)
	for _, inv := range result.Invalid {
		logger.Warn().Err(inv.Err).Str("title", inv.Record.Title).Msg("skipping record with no usable identifier")
		if p.metrics != nil {
			p.metrics.RecordsSkipped.Inc()
		}
	}
	logger.Info().
		Int("new", summary.New).
		Int("existing", summary.Existing).
		Int("duplicates", summary.Duplicates).
		Int("invalid", summary.Invalid).
		Msg("classified fetched records")

	p.attachFullText(ctx, logger, result.ToCreate)

	enriched, enrichErr := p.enrichNew(ctx, logger, summary, result.ToCreate)

	p.syncCreates(ctx, logger, summary, enriched)
	p.syncUpdates(ctx, logger, summary, result.ToUpdate)

	if enrichErr != nil {
		summary.Outcome = "degraded"
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("enrichment halted: %v; synced %d of %d new records", enrichErr, len(enriched), summary.New))
	}
	if summary.Failed > 0 && summary.Outcome == "succeeded" {
		summary.Outcome = "degraded"
	}
	return nil
}

// loadIndex lists the target's stored pages and builds the identity
// index.
func (p *Pipeline) loadIndex(ctx context.Context, logger zerolog.Logger, summary *Summary) (dedupe.Index, error) {
	entries, err := p.target.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync target entries: %w", err)
	}

	index, duplicates, unkeyed := dedupe.BuildIndex(entries)
	for _, key := range duplicates {
		logger.Warn().Str("dedupe_key", key).Msg("duplicate key among stored pages, later page wins")
	}
	if len(duplicates) > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%d duplicate keys among stored pages", len(duplicates)))
	}
	if unkeyed > 0 {
		logger.Warn().Int("count", unkeyed).Msg("stored pages with no usable identifier ignored")
	}
	logger.Info().Int("pages", len(entries)).Int("keys", len(index)).Msg("built identity index")
	return index, nil
}

// fetch pages through the search until enough new records accumulate or
// the result set or page budget is exhausted, then retrieves the merged
// summary and detail views. Pagination stops early once MaxResults
// records absent from the index have been seen, so a mostly-synced
// database does not trigger a full re-fetch.
func (p *Pipeline) fetch(ctx context.Context, logger zerolog.Logger, index dedupe.Index) ([]domain.Record, error) {
	var (
		pmids     []string
		summaries = make(map[string]domain.Record)
		newSeen   int
		offset    int
	)

	for page := 0; page < p.config.MaxPages; page++ {
		start := time.Now()
		sp, err := p.source.Search(ctx, pubmed.SearchParams{
			Query:   p.config.Query,
			RelDays: p.config.RelDays,
			Offset:  offset,
		})
		p.observeSource("esearch", start)
		if err != nil {
			return nil, fmt.Errorf("search literature source: %w", err)
		}
		if page == 0 {
			logger.Info().Int("total", sp.Total).Msg("search issued")
		}
		if len(sp.PMIDs) == 0 {
			break
		}

		start = time.Now()
		batch, err := p.source.Summaries(ctx, sp.PMIDs)
		p.observeSource("esummary", start)
		if err != nil {
			return nil, fmt.Errorf("fetch summaries: %w", err)
		}
		for _, pmid := range sp.PMIDs {
			rec, ok := batch[pmid]
			if !ok {
				continue
			}
			pmids = append(pmids, pmid)
			summaries[pmid] = rec
			if key, err := rec.DedupeKey(); err == nil {
				if _, exists := index[key]; !exists {
					newSeen++
				}
			}
		}

		if newSeen >= p.config.MaxResults {
			logger.Info().Int("new_seen", newSeen).Int("pages", page+1).Msg("new-record target reached, stopping pagination")
			break
		}
		if !sp.HasMore {
			break
		}
		offset = sp.NextOffset
	}

	if len(pmids) == 0 {
		return nil, nil
	}

	start := time.Now()
	details, err := p.source.Details(ctx, pmids)
	p.observeSource("efetch", start)
	if err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	records := make([]domain.Record, 0, len(pmids))
	for _, pmid := range pmids {
		summary := summaries[pmid]
		detail, ok := details[pmid]
		if !ok {
			// Keep the summary view; efetch occasionally lags esearch.
			records = append(records, summary)
			continue
		}
		records = append(records, normalize.Merge(summary, detail))
	}
	return records, nil
}

// observeSource records an upstream request duration when metrics are
// wired.
func (p *Pipeline) observeSource(endpoint string, start time.Time) {
	if p.metrics != nil {
		p.metrics.SourceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// validateFetch runs the upstream sanity checks. Warnings never stop
// the run.
func (p *Pipeline) validateFetch(ctx context.Context, logger zerolog.Logger, summary *Summary, records []domain.Record) {
	median := float64(p.config.HistoricalMedian)
	if p.runs != nil {
		if m, ok, err := p.runs.MedianFetched(ctx, p.config.Tier, 10); err != nil {
			logger.Warn().Err(err).Msg("failed to read run history for volume check")
		} else if ok {
			median = m
		}
	}

	warnings := volumeWarnings(len(records), median)
	warnings = append(warnings, goldSetWarnings(records, p.config.GoldSet)...)
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}
	if len(warnings) > 0 {
		summary.Warnings = append(summary.Warnings, warnings...)
		summary.Outcome = "degraded"
	}
}

// attachFullText builds the AI text view for new records, pulling
// full-text sections for open-access deposits when enabled. Full-text
// failures fall back to the abstract.
func (p *Pipeline) attachFullText(ctx context.Context, logger zerolog.Logger, records []domain.Record) {
	for i := range records {
		rec := &records[i]
		if !p.config.FullText || rec.PMCID == "" {
			normalize.ApplyFullText(rec, nil)
			continue
		}
		ft, err := p.source.FullText(ctx, rec.PMCID)
		if err != nil {
			logger.Debug().Err(err).Str("pmcid", rec.PMCID).Msg("full text unavailable, using abstract")
			ft = nil
		}
		normalize.ApplyFullText(rec, ft)
	}
}

// enrichNew annotates the new records. Dry runs and a nil enricher skip
// annotation entirely; every record still flows to sync with nil
// fields. On quota exhaustion the completed annotations are returned
// alongside the error so sync can preserve the finished work.
func (p *Pipeline) enrichNew(ctx context.Context, logger zerolog.Logger, summary *Summary, toCreate []domain.Record) ([]enrich.Enriched, error) {
	if p.enricher == nil || p.config.DryRun {
		out := make([]enrich.Enriched, len(toCreate))
		for i, rec := range toCreate {
			out[i] = enrich.Enriched{Record: rec}
		}
		return out, nil
	}

	enriched, err := p.enricher.EnrichBatch(ctx, toCreate)
	for _, e := range enriched {
		summary.Enriched++
		if p.metrics != nil {
			p.metrics.EnrichmentCalls.WithLabelValues("fast").Inc()
		}
		if e.Fields != nil && e.Fields.Escalated {
			summary.Escalated++
			if p.metrics != nil {
				p.metrics.EnrichmentCalls.WithLabelValues("strong").Inc()
				p.metrics.EnrichmentEscalations.Inc()
			}
		}
	}
	if err != nil {
		logger.Error().Err(err).Int("completed", len(enriched)).Msg("enrichment phase halted")
		if p.metrics != nil {
			switch {
			case errors.Is(err, domain.ErrQuotaExceeded):
				p.metrics.EnrichmentFailures.WithLabelValues("quota").Inc()
			case errors.Is(err, domain.ErrAuthFailed):
				p.metrics.EnrichmentFailures.WithLabelValues("auth").Inc()
			default:
				p.metrics.EnrichmentFailures.WithLabelValues("other").Inc()
			}
		}
		return enriched, err
	}
	return enriched, nil
}

// syncCreates writes new records to the target.
func (p *Pipeline) syncCreates(ctx context.Context, logger zerolog.Logger, summary *Summary, enriched []enrich.Enriched) {
	for _, e := range enriched {
		key, _ := e.Record.DedupeKey()
		recLogger := observability.WithRecordContext(logger, e.Record.PMID, key)
		if p.config.DryRun {
			summary.Created++
			recLogger.Info().Str("title", e.Record.Title).Msg("dry run: would create page")
			continue
		}
		pageID, err := p.target.CreatePage(ctx, e.Record, e.Fields)
		if err != nil {
			summary.Failed++
			recLogger.Error().Err(err).Msg("failed to create page")
			if p.metrics != nil {
				p.metrics.RecordsFailed.Inc()
				p.metrics.SyncRequests.WithLabelValues("create", "failed").Inc()
			}
			continue
		}
		summary.Created++
		recLogger.Debug().Str("page_id", pageID).Msg("created page")
		if p.metrics != nil {
			p.metrics.RecordsCreated.Inc()
			p.metrics.SyncRequests.WithLabelValues("create", "ok").Inc()
		}
	}
}

// syncUpdates refreshes existing pages: metadata plus the LastChecked
// stamp, never enrichment fields.
func (p *Pipeline) syncUpdates(ctx context.Context, logger zerolog.Logger, summary *Summary, matches []dedupe.Match) {
	for _, m := range matches {
		key, _ := m.Record.DedupeKey()
		recLogger := observability.WithRecordContext(logger, m.Record.PMID, key)
		if p.config.DryRun {
			summary.Updated++
			recLogger.Info().Str("page_id", m.PageID).Msg("dry run: would update page")
			continue
		}
		if err := p.target.UpdatePage(ctx, m.PageID, m.Record, nil); err != nil {
			summary.Failed++
			recLogger.Error().Err(err).Str("page_id", m.PageID).Msg("failed to update page")
			if p.metrics != nil {
				p.metrics.RecordsFailed.Inc()
				p.metrics.SyncRequests.WithLabelValues("update", "failed").Inc()
			}
			continue
		}
		summary.Updated++
		if p.metrics != nil {
			p.metrics.RecordsUpdated.Inc()
			p.metrics.SyncRequests.WithLabelValues("update", "ok").Inc()
		}
	}
}

// finish records the run outcome in metrics and the run history.
func (p *Pipeline) finish(logger zerolog.Logger, summary *Summary, runErr error) {
	if p.metrics != nil {
		p.metrics.RunDuration.Observe(summary.Duration.Seconds())
		if runErr != nil {
			p.metrics.RunsFailed.Inc()
		} else {
			p.metrics.RunsCompleted.Inc()
		}
	}

	if p.runs != nil {
		// Run-history writes must not vanish with the caller's context.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		note := ""
		if len(summary.Warnings) > 0 {
			note = summary.Warnings[0]
		}
		err := p.runs.Finish(ctx, runlog.Entry{
			RunID:     summary.RunID,
			Tier:      summary.Tier,
			Query:     p.config.Query,
			DryRun:    summary.DryRun,
			Fetched:   summary.Fetched,
			Created:   summary.Created,
			Updated:   summary.Updated,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			Enriched:  summary.Enriched,
			Escalated: summary.Escalated,
			Outcome:   summary.Outcome,
			Note:      note,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to record run outcome")
		}
	}

	logger.Info().
		Str("outcome", summary.Outcome).
		Int("fetched", summary.Fetched).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("enriched", summary.Enriched).
		Int("escalated", summary.Escalated).
		Dur("duration", summary.Duration).
		Msg("run finished")
}
