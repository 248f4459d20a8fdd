// Package config provides configuration management for the literature
// sync pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Tier names for the built-in query presets.
const (
	// Tier1 is the focused preset: prostate cancer crossed with spatial
	// and single-cell profiling terms.
	Tier1 = "tier1"
	// Tier2 is the broad preset: any cancer crossed with the same
	// profiling terms.
	Tier2 = "tier2"
)

// tier1Query is the focused PubMed preset.
const tier1Query = `("Prostatic Neoplasms"[MeSH Terms] OR prostate[tiab] OR prostatic[tiab] OR "prostate cancer"[tiab]) AND ("spatial transcriptom*"[tiab] OR "spatial gene expression"[tiab] OR "spatial multiomic*"[tiab] OR "spatial omics"[tiab] OR "spatial multi-omics"[tiab] OR Visium[tiab] OR Xenium[tiab] OR CosMx[tiab] OR GeoMx[tiab] OR "Slide-seq"[tiab] OR "SlideSeq"[tiab] OR "spatial ATAC"[tiab] OR "spatial-ATAC"[tiab] OR "single-cell"[tiab] OR "single cell"[tiab] OR "single-nucleus"[tiab] OR "single nucleus"[tiab] OR scRNA*[tiab] OR snRNA*[tiab] OR scATAC*[tiab] OR snATAC*[tiab] OR multiome[tiab] OR "10x multiome"[tiab] OR pseudotime[tiab] OR "trajectory inference"[tiab] OR "RNA velocity"[tiab]) AND ("Journal Article"[pt] NOT "Review"[pt] NOT "Editorial"[pt] NOT "Comment"[pt] NOT "Letter"[pt] NOT "News"[pt] NOT "Case Reports"[pt]) AND english[la] NOT "Preprint"[Publication Type]`

// tier2Query is the broad PubMed preset.
const tier2Query = `("Neoplasms"[MeSH Terms] OR cancer[tiab] OR cancers[tiab] OR carcinoma[tiab] OR carcinomas[tiab] OR tumor[tiab] OR tumors[tiab] OR malignan*[tiab]) AND ("spatial transcriptom*"[tiab] OR "spatial gene expression"[tiab] OR "spatial multiomic*"[tiab] OR "spatial omics"[tiab] OR Visium[tiab] OR Xenium[tiab] OR CosMX[tiab] OR GeoMx[tiab] OR "Slide-seq"[tiab] OR "SlideSeq"[tiab] OR "spatial ATAC"[tiab] OR "spatial-ATAC"[tiab] OR "single-cell"[tiab] OR "single cell"[tiab] OR "single-nucleus"[tiab] OR "single nucleus"[tiab] OR scRNA*[tiab] OR snRNA*[tiab] OR scATAC*[tiab] OR snATAC*[tiab] OR multiome[tiab] OR "10x multiome"[tiab] OR pseudotime[tiab] OR "trajectory inference"[tiab] OR "RNA velocity"[tiab]) AND ("Journal Article"[pt] NOT "Review"[pt] NOT "Editorial"[pt] NOT "Comment"[pt] NOT "Letter"[pt] NOT "News"[pt] NOT "Case Reports"[pt]) AND english[la] NOT "Preprint"[Publication Type]`

// TierQuery returns the preset query for a tier name, or "" for an
// unknown tier.
func TierQuery(tier string) string {
	switch tier {
	case Tier1:
		return tier1Query
	case Tier2:
		return tier2Query
	default:
		return ""
	}
}

// Config holds all configuration for the sync pipeline.
type Config struct {
	// PubMed contains E-utilities client settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Notion contains sync target settings.
	Notion NotionConfig `mapstructure:"notion"`
	// Enrichment contains model provider and escalation settings.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	// Pipeline contains run behaviour settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// RunLog contains run history persistence settings.
	RunLog RunLogConfig `mapstructure:"runlog"`
}

// PubMedConfig holds E-utilities client configuration.
type PubMedConfig struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey is the NCBI API key. Loaded exclusively from the
	// environment (LITSYNC_PUBMED_API_KEY).
	APIKey string `mapstructure:"-"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size" validate:"gt=0"`
	// Timeout is the request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// PageSize is the esearch page size.
	PageSize int `mapstructure:"page_size" validate:"gt=0,lte=10000"`
}

// NotionConfig holds sync target configuration.
type NotionConfig struct {
	// Token is the integration token. Loaded exclusively from the
	// environment (LITSYNC_NOTION_TOKEN).
	Token string `mapstructure:"-"`
	// DatabaseID is the target database identifier.
	DatabaseID string `mapstructure:"database_id"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// Timeout is the request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderConfig holds settings for one model provider.
type ProviderConfig struct {
	// APIKey is the provider API key. Loaded exclusively from the
	// environment.
	APIKey string `mapstructure:"-"`
	// Model is the model identifier.
	Model string `mapstructure:"model" validate:"required"`
	// BaseURL overrides the provider base URL when set.
	BaseURL string `mapstructure:"base_url"`
}

// EnrichmentConfig holds model enrichment configuration.
type EnrichmentConfig struct {
	// Enabled toggles the enrichment phase entirely.
	Enabled bool `mapstructure:"enabled"`
	// Gemini is the fast-tier provider.
	Gemini ProviderConfig `mapstructure:"gemini"`
	// OpenAI is the strong-tier provider.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// BandMin and BandMax bound the uncertainty band, inclusive.
	BandMin int `mapstructure:"band_min" validate:"gte=0,lte=100"`
	BandMax int `mapstructure:"band_max" validate:"gte=0,lte=100,gtefield=BandMin"`
	// Concurrency bounds parallel annotation.
	Concurrency int `mapstructure:"concurrency" validate:"gt=0"`
	// Timeout is the per-call timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the per-call transient retry budget.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// PipelineConfig holds run behaviour configuration.
type PipelineConfig struct {
	// Tier selects the query preset. Ignored when Query is set.
	Tier string `mapstructure:"tier"`
	// Query overrides the tier preset when set.
	Query string `mapstructure:"query"`
	// RelDays restricts results to the last N days of publication dates.
	RelDays int `mapstructure:"rel_days" validate:"gte=0"`
	// MaxResults caps the total records fetched in one run.
	MaxResults int `mapstructure:"max_results" validate:"gt=0"`
	// MaxPages caps search pagination.
	MaxPages int `mapstructure:"max_pages" validate:"gt=0"`
	// FullText enables PMC full-text retrieval for new records.
	FullText bool `mapstructure:"full_text"`
	// DryRun reports what a run would do without enriching or writing.
	DryRun bool `mapstructure:"dry_run"`
	// GoldSet lists identifiers (PMID or DOI) expected in every healthy
	// fetch; their absence degrades the run status.
	GoldSet []string `mapstructure:"gold_set"`
	// HistoricalMedian seeds the volume check before enough run history
	// accumulates.
	HistoricalMedian int `mapstructure:"historical_median" validate:"gt=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output" validate:"oneof=stdout stderr"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// RunLogConfig holds run history configuration.
type RunLogConfig struct {
	// Path is the SQLite database file for run history.
	Path string `mapstructure:"path" validate:"required"`
}

// Load reads configuration from defaults, an optional config file, and
// environment variables (prefix LITSYNC), then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/litsync")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment
// variables. These fields use mapstructure:"-" so they can never come
// from a config file checked into a repo.
func loadSecrets(cfg *Config) {
	cfg.PubMed.APIKey = os.Getenv("LITSYNC_PUBMED_API_KEY")
	cfg.Notion.Token = os.Getenv("LITSYNC_NOTION_TOKEN")
	cfg.Enrichment.Gemini.APIKey = os.Getenv("LITSYNC_ENRICHMENT_GEMINI_API_KEY")
	cfg.Enrichment.OpenAI.APIKey = os.Getenv("LITSYNC_ENRICHMENT_OPENAI_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.rate_limit", 3.0)
	v.SetDefault("pubmed.burst_size", 3)
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.page_size", 200)

	v.SetDefault("notion.database_id", "")
	v.SetDefault("notion.base_url", "https://api.notion.com")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("notion.timeout", "30s")

	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.gemini.model", "gemini-2.0-flash")
	v.SetDefault("enrichment.openai.model", "gpt-4o")
	v.SetDefault("enrichment.band_min", 70)
	v.SetDefault("enrichment.band_max", 84)
	v.SetDefault("enrichment.concurrency", 4)
	v.SetDefault("enrichment.timeout", "60s")
	v.SetDefault("enrichment.max_retries", 3)

	v.SetDefault("pipeline.tier", Tier1)
	v.SetDefault("pipeline.query", "")
	v.SetDefault("pipeline.rel_days", 365)
	v.SetDefault("pipeline.max_results", 2000)
	v.SetDefault("pipeline.max_pages", 30)
	v.SetDefault("pipeline.full_text", true)
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("pipeline.gold_set", []string{"36750562", "10.1038/s41467-023-36325-2"})
	v.SetDefault("pipeline.historical_median", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("runlog.path", "litsync-runs.db")
}

// Validate checks structural constraints via validator tags plus the
// handful of cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", ve.Namespace(), ve.Tag())
		}
		return err
	}

	if c.Pipeline.Query == "" && TierQuery(c.Pipeline.Tier) == "" {
		return fmt.Errorf("unknown tier %q and no explicit query", c.Pipeline.Tier)
	}
	return nil
}

// ResolvedQuery returns the effective PubMed query: the explicit override
// when set, otherwise the tier preset.
func (c *Config) ResolvedQuery() string {
	if c.Pipeline.Query != "" {
		return c.Pipeline.Query
	}
	return TierQuery(c.Pipeline.Tier)
}
