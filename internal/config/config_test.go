package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", cfg.PubMed.BaseURL)
	assert.Equal(t, 3.0, cfg.PubMed.RateLimit)
	assert.Equal(t, 200, cfg.PubMed.PageSize)
	assert.Equal(t, 30*time.Second, cfg.PubMed.Timeout)

	assert.Equal(t, "https://api.notion.com", cfg.Notion.BaseURL)

	assert.True(t, cfg.Enrichment.Enabled)
	assert.Equal(t, 70, cfg.Enrichment.BandMin)
	assert.Equal(t, 84, cfg.Enrichment.BandMax)
	assert.Equal(t, 4, cfg.Enrichment.Concurrency)

	assert.Equal(t, Tier1, cfg.Pipeline.Tier)
	assert.Equal(t, 365, cfg.Pipeline.RelDays)
	assert.Equal(t, 500, cfg.Pipeline.HistoricalMedian)
	assert.Equal(t, []string{"36750562", "10.1038/s41467-023-36325-2"}, cfg.Pipeline.GoldSet)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "litsync-runs.db", cfg.RunLog.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LITSYNC_PIPELINE_TIER", "tier2")
	t.Setenv("LITSYNC_PIPELINE_REL_DAYS", "30")
	t.Setenv("LITSYNC_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Tier2, cfg.Pipeline.Tier)
	assert.Equal(t, 30, cfg.Pipeline.RelDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadSecretsFromEnvOnly(t *testing.T) {
	t.Setenv("LITSYNC_PUBMED_API_KEY", "ncbi-key")
	t.Setenv("LITSYNC_NOTION_TOKEN", "secret_token")
	t.Setenv("LITSYNC_ENRICHMENT_GEMINI_API_KEY", "gm-key")
	t.Setenv("LITSYNC_ENRICHMENT_OPENAI_API_KEY", "oa-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ncbi-key", cfg.PubMed.APIKey)
	assert.Equal(t, "secret_token", cfg.Notion.Token)
	assert.Equal(t, "gm-key", cfg.Enrichment.Gemini.APIKey)
	assert.Equal(t, "oa-key", cfg.Enrichment.OpenAI.APIKey)
}

func TestLoadInvalidLevel(t *testing.T) {
	t.Setenv("LITSYNC_LOGGING_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestValidateBandOrdering(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Enrichment.BandMin = 90
	cfg.Enrichment.BandMax = 80
	assert.Error(t, cfg.Validate())
}

func TestValidateUnknownTierWithoutQuery(t *testing.T) {
	t.Setenv("LITSYNC_PIPELINE_TIER", "tier9")

	_, err := Load()
	require.Error(t, err)
}

func TestTierQuery(t *testing.T) {
	assert.Contains(t, TierQuery(Tier1), `"Prostatic Neoplasms"[MeSH Terms]`)
	assert.Contains(t, TierQuery(Tier2), `"Neoplasms"[MeSH Terms]`)
	assert.Empty(t, TierQuery("tier9"))
}

func TestResolvedQuery(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TierQuery(Tier1), cfg.ResolvedQuery())

	cfg.Pipeline.Query = "custom[tiab]"
	assert.Equal(t, "custom[tiab]", cfg.ResolvedQuery())
}
