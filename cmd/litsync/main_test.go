package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncospatial/litsync/internal/pipeline"
	"github.com/oncospatial/litsync/internal/runlog"
)

func TestRootCommandTree(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "history")
	assert.Contains(t, names, "version")
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(&pipeline.Summary{
		RunID:    "run-1",
		Tier:     "tier1",
		Outcome:  "succeeded",
		Fetched:  42,
		Created:  5,
		Updated:  37,
		Duration: 1500 * time.Millisecond,
	})

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1.5s")
}

func TestRenderHistory(t *testing.T) {
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	out := renderHistory([]runlog.Entry{
		{
			RunID:     "0a1b2c3d-0000-0000-0000-000000000000",
			StartedAt: started,
			Tier:      "tier1",
			DryRun:    true,
			Outcome:   "succeeded",
			Fetched:   10,
			Created:   3,
		},
	})

	assert.Contains(t, out, "0a1b2c3d")
	assert.NotContains(t, out, "0a1b2c3d-0000", "run IDs are shortened for display")
	assert.Contains(t, out, "tier1")
	assert.Contains(t, out, "yes")
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", shortRunID("0a1b2c3d-ffff"))
	assert.Equal(t, "short", shortRunID("short"))
}

func TestVersionCommandOutput(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"version"})

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "litsync")
}
