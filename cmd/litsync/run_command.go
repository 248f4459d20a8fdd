package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oncospatial/litsync/internal/config"
	"github.com/oncospatial/litsync/internal/enrich"
	"github.com/oncospatial/litsync/internal/notion"
	"github.com/oncospatial/litsync/internal/observability"
	"github.com/oncospatial/litsync/internal/pipeline"
	"github.com/oncospatial/litsync/internal/runlog"
	"github.com/oncospatial/litsync/internal/sources/pubmed"
)

func newRunCommand() *cobra.Command {
	var (
		tierFlag       string
		queryFlag      string
		relDaysFlag    int
		maxResultsFlag int
		dryRunFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one sync run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, tierFlag, queryFlag, relDaysFlag, maxResultsFlag, dryRunFlag)
			if cfg.ResolvedQuery() == "" {
				return fmt.Errorf("unknown tier %q and no --query given", cfg.Pipeline.Tier)
			}

			logger := observability.NewLogger(observability.LoggingConfig{
				Level:      cfg.Logging.Level,
				Format:     cfg.Logging.Format,
				Output:     cfg.Logging.Output,
				TimeFormat: cfg.Logging.TimeFormat,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			runID := uuid.NewString()
			summary, err := p.Run(ctx, runID)
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
				for _, w := range summary.Warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&tierFlag, "tier", "", "query preset (tier1, tier2)")
	cmd.Flags().StringVar(&queryFlag, "query", "", "custom query expression, overrides the tier preset")
	cmd.Flags().IntVar(&relDaysFlag, "reldays", 0, "restrict to publication dates within the last N days")
	cmd.Flags().IntVar(&maxResultsFlag, "max-results", 0, "cap on new records taken on in one run")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "report what would happen without enriching or writing")

	return cmd
}

// applyRunFlags overlays explicitly set command flags onto the loaded
// configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, tier, query string, relDays, maxResults int, dryRun bool) {
	if cmd.Flags().Changed("tier") {
		cfg.Pipeline.Tier = tier
	}
	if cmd.Flags().Changed("query") {
		cfg.Pipeline.Query = query
	}
	if cmd.Flags().Changed("reldays") {
		cfg.Pipeline.RelDays = relDays
	}
	if cmd.Flags().Changed("max-results") {
		cfg.Pipeline.MaxResults = maxResults
	}
	if dryRun {
		cfg.Pipeline.DryRun = true
	}
}

// buildPipeline wires the clients, enricher, and run history store from
// configuration. The returned cleanup closes the run history store.
func buildPipeline(cfg *config.Config, logger zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	source := pubmed.New(pubmed.Config{
		BaseURL:   cfg.PubMed.BaseURL,
		APIKey:    cfg.PubMed.APIKey,
		Timeout:   cfg.PubMed.Timeout,
		RateLimit: cfg.PubMed.RateLimit,
		BurstSize: cfg.PubMed.BurstSize,
		PageSize:  cfg.PubMed.PageSize,
	})

	if cfg.Notion.Token == "" {
		return nil, nil, fmt.Errorf("LITSYNC_NOTION_TOKEN is not set")
	}
	if cfg.Notion.DatabaseID == "" {
		return nil, nil, fmt.Errorf("notion.database_id is not configured")
	}
	target := notion.New(notion.Config{
		Token:      cfg.Notion.Token,
		DatabaseID: cfg.Notion.DatabaseID,
		BaseURL:    cfg.Notion.BaseURL,
		Timeout:    cfg.Notion.Timeout,
		RateLimit:  cfg.Notion.RateLimit,
	})

	enricher, err := buildEnricher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	runs, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	cleanup := func() {
		if err := runs.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close run history store")
		}
	}

	p := pipeline.New(pipeline.Config{
		Tier:             cfg.Pipeline.Tier,
		Query:            cfg.ResolvedQuery(),
		RelDays:          cfg.Pipeline.RelDays,
		MaxResults:       cfg.Pipeline.MaxResults,
		MaxPages:         cfg.Pipeline.MaxPages,
		FullText:         cfg.Pipeline.FullText,
		DryRun:           cfg.Pipeline.DryRun,
		GoldSet:          cfg.Pipeline.GoldSet,
		HistoricalMedian: cfg.Pipeline.HistoricalMedian,
	}, pipeline.Options{
		Source:   source,
		Target:   target,
		Enricher: enricher,
		Runs:     runs,
		Metrics:  observability.NewMetrics("litsync"),
		Logger:   logger,
	})
	return p, cleanup, nil
}

// buildEnricher assembles the two-tier escalator, or returns nil when
// enrichment is disabled or unconfigured so the pipeline syncs records
// without annotations.
func buildEnricher(cfg *config.Config, logger zerolog.Logger) (pipeline.Enricher, error) {
	if !cfg.Enrichment.Enabled {
		logger.Info().Msg("enrichment disabled by configuration")
		return nil, nil
	}
	if cfg.Enrichment.Gemini.APIKey == "" || cfg.Enrichment.OpenAI.APIKey == "" {
		logger.Warn().Msg("enrichment provider keys missing, syncing without annotations")
		return nil, nil
	}

	fast := enrich.NewGeminiProvider(enrich.GeminiConfig{
		APIKey:  cfg.Enrichment.Gemini.APIKey,
		Model:   cfg.Enrichment.Gemini.Model,
		BaseURL: cfg.Enrichment.Gemini.BaseURL,
	}, cfg.Enrichment.Timeout, cfg.Enrichment.MaxRetries)

	strong := enrich.NewOpenAIProvider(enrich.OpenAIConfig{
		APIKey:  cfg.Enrichment.OpenAI.APIKey,
		Model:   cfg.Enrichment.OpenAI.Model,
		BaseURL: cfg.Enrichment.OpenAI.BaseURL,
	}, cfg.Enrichment.Timeout, cfg.Enrichment.MaxRetries)

	return enrich.NewEscalator(enrich.EscalatorConfig{
		Fast:        fast,
		Strong:      strong,
		BandMin:     cfg.Enrichment.BandMin,
		BandMax:     cfg.Enrichment.BandMax,
		Concurrency: cfg.Enrichment.Concurrency,
		Logger:      logger,
	}), nil
}

// renderSummary formats the run outcome as a two-column table.
func renderSummary(s *pipeline.Summary) string {
	rows := [][]string{
		{"Run ID", s.RunID},
		{"Tier", s.Tier},
		{"Dry run", strconv.FormatBool(s.DryRun)},
		{"Outcome", s.Outcome},
		{"Fetched", strconv.Itoa(s.Fetched)},
		{"New", strconv.Itoa(s.New)},
		{"Existing", strconv.Itoa(s.Existing)},
		{"Created", strconv.Itoa(s.Created)},
		{"Updated", strconv.Itoa(s.Updated)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Enriched", strconv.Itoa(s.Enriched)},
		{"Escalated", strconv.Itoa(s.Escalated)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
