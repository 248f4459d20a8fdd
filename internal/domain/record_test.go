package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDOI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare doi", "10.1038/s41467-023-36325-2", "10.1038/s41467-023-36325-2"},
		{"uppercase lowered", "10.1038/S41467-023-36325-2", "10.1038/s41467-023-36325-2"},
		{"https resolver prefix stripped", "https://doi.org/10.1038/s41467-023-36325-2", "10.1038/s41467-023-36325-2"},
		{"http resolver prefix stripped", "http://doi.org/10.1234/abc", "10.1234/abc"},
		{"dx resolver prefix stripped", "https://dx.doi.org/10.1234/abc", "10.1234/abc"},
		{"doi scheme stripped", "doi:10.1234/ABC", "10.1234/abc"},
		{"surrounding whitespace trimmed", "  10.1234/abc \n", "10.1234/abc"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"placeholder rejected", "n/a", ""},
		{"non-doi rejected", "PMC1234567", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalDOI(tt.in))
		})
	}
}

func TestResolveDedupeKey(t *testing.T) {
	t.Run("doi preferred over pmid", func(t *testing.T) {
		key, err := ResolveDedupeKey("10.1/xyz", "12345")
		require.NoError(t, err)
		assert.Equal(t, "10.1/xyz", key)
	})

	t.Run("pmid fallback when doi empty", func(t *testing.T) {
		key, err := ResolveDedupeKey("", "12345")
		require.NoError(t, err)
		assert.Equal(t, "PMID:12345", key)
	})

	t.Run("pmid fallback when doi is a placeholder", func(t *testing.T) {
		key, err := ResolveDedupeKey("n/a", "12345")
		require.NoError(t, err)
		assert.Equal(t, "PMID:12345", key)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		first, err := ResolveDedupeKey("https://doi.org/10.1/XYZ", "999")
		require.NoError(t, err)
		second, err := ResolveDedupeKey("https://doi.org/10.1/XYZ", "999")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("resolver url and bare doi share one key", func(t *testing.T) {
		fromURL, err := ResolveDedupeKey("https://doi.org/10.1/xyz", "1")
		require.NoError(t, err)
		bare, err := ResolveDedupeKey("10.1/xyz", "2")
		require.NoError(t, err)
		assert.Equal(t, bare, fromURL)
	})

	t.Run("missing both identifiers", func(t *testing.T) {
		_, err := ResolveDedupeKey("", "  ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingIdentifier)

		var mie *MissingIdentifierError
		require.True(t, errors.As(err, &mie))
	})
}

func TestRecordDedupeKey(t *testing.T) {
	rec := &Record{PMID: "36750562"}
	key, err := rec.DedupeKey()
	require.NoError(t, err)
	assert.Equal(t, "PMID:36750562", key)

	rec.DOI = "10.1038/s41467-023-36325-2"
	key, err = rec.DedupeKey()
	require.NoError(t, err)
	assert.Equal(t, "10.1038/s41467-023-36325-2", key)
}

func TestEnrichedFieldsScore(t *testing.T) {
	var fields *EnrichedFields
	_, ok := fields.Score()
	assert.False(t, ok)

	fields = &EnrichedFields{}
	_, ok = fields.Score()
	assert.False(t, ok)

	score := 77
	fields.RelevanceScore = &score
	got, ok := fields.Score()
	assert.True(t, ok)
	assert.Equal(t, 77, got)
}

func TestMissingIdentifierErrorMessage(t *testing.T) {
	err := &MissingIdentifierError{DOI: "", PMID: ""}
	assert.Contains(t, err.Error(), "no usable identifier")
}
