package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oncospatial/litsync/internal/domain"
)

func TestVolumeWarnings(t *testing.T) {
	tests := []struct {
		name    string
		fetched int
		median  float64
		want    int
	}{
		{"within band", 400, 500, 0},
		{"exactly half", 250, 500, 0},
		{"under half", 249, 500, 1},
		{"exactly double", 1000, 500, 0},
		{"over double", 1001, 500, 1},
		{"zero results", 0, 500, 1},
		{"no history", 7, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, volumeWarnings(tt.fetched, tt.median), tt.want)
		})
	}
}

func TestGoldSetWarnings(t *testing.T) {
	records := []domain.Record{
		{PMID: "36750562"},
		{PMID: "111", DOI: "https://doi.org/10.1038/s41467-023-36325-2"},
	}

	t.Run("all present", func(t *testing.T) {
		warnings := goldSetWarnings(records, []string{"36750562", "10.1038/s41467-023-36325-2"})
		assert.Empty(t, warnings)
	})

	t.Run("doi matched through canonicalization", func(t *testing.T) {
		warnings := goldSetWarnings(records, []string{"doi:10.1038/S41467-023-36325-2"})
		assert.Empty(t, warnings)
	})

	t.Run("missing landmark", func(t *testing.T) {
		warnings := goldSetWarnings(records, []string{"99999999", "10.1000/absent"})
		assert.Len(t, warnings, 2)
		assert.Contains(t, warnings[0], "99999999")
		assert.Contains(t, warnings[1], "10.1000/absent")
	})

	t.Run("empty gold set", func(t *testing.T) {
		assert.Empty(t, goldSetWarnings(records, nil))
	})
}
