package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncospatial/litsync/internal/domain"
)

func TestBuildIndex(t *testing.T) {
	t.Run("keys stored entries by identity", func(t *testing.T) {
		entries := []StoredEntry{
			{PageID: "page-1", DedupeKey: "10.1038/s41467-023-36325-2"},
			{PageID: "page-2", DedupeKey: "PMID:36750562"},
			{PageID: "page-3", PMID: "11112222"}, // legacy page without a stored key
		}
		index, duplicates, unkeyed := BuildIndex(entries)

		require.Len(t, index, 3)
		assert.Equal(t, "page-1", index["10.1038/s41467-023-36325-2"])
		assert.Equal(t, "page-2", index["PMID:36750562"])
		assert.Equal(t, "page-3", index["PMID:11112222"])
		assert.Empty(t, duplicates)
		assert.Zero(t, unkeyed)
	})

	t.Run("stored keys are re-canonicalized", func(t *testing.T) {
		entries := []StoredEntry{
			{PageID: "page-1", DedupeKey: "https://doi.org/10.1000/ABC"},
		}
		index, _, _ := BuildIndex(entries)
		assert.Equal(t, "page-1", index["10.1000/abc"])
	})

	t.Run("later entry wins on key collision", func(t *testing.T) {
		entries := []StoredEntry{
			{PageID: "page-old", DedupeKey: "10.1000/x"},
			{PageID: "page-new", DedupeKey: "10.1000/x"},
		}
		index, duplicates, _ := BuildIndex(entries)

		assert.Equal(t, "page-new", index["10.1000/x"])
		assert.Equal(t, []string{"10.1000/x"}, duplicates)
	})

	t.Run("resolver URL and bare DOI collide", func(t *testing.T) {
		entries := []StoredEntry{
			{PageID: "page-a", DedupeKey: "https://doi.org/10.1000/X"},
			{PageID: "page-b", DedupeKey: "10.1000/x"},
		}
		index, duplicates, _ := BuildIndex(entries)

		require.Len(t, index, 1)
		assert.Equal(t, "page-b", index["10.1000/x"])
		assert.Len(t, duplicates, 1)
	})

	t.Run("entries without identifiers are counted, not fatal", func(t *testing.T) {
		entries := []StoredEntry{
			{PageID: "page-1", PMID: "123"},
			{PageID: "page-broken"},
		}
		index, _, unkeyed := BuildIndex(entries)

		assert.Len(t, index, 1)
		assert.Equal(t, 1, unkeyed)
	})
}

func TestClassify(t *testing.T) {
	index := Index{
		"10.1000/known": "page-known",
		"PMID:11111111": "page-pmid",
	}

	t.Run("partitions created, updated, duplicate, invalid", func(t *testing.T) {
		records := []domain.Record{
			{PMID: "22222222", DOI: "10.1000/new"},
			{PMID: "33333333", DOI: "10.1000/known"},
			{PMID: "11111111"},
			{PMID: "44444444", DOI: "10.1000/new"}, // same key as the first
			{},                                    // no identifiers
		}

		result := Classify(records, index)

		require.Len(t, result.ToCreate, 1)
		assert.Equal(t, "22222222", result.ToCreate[0].PMID)

		require.Len(t, result.ToUpdate, 2)
		assert.Equal(t, "page-known", result.ToUpdate[0].PageID)
		assert.Equal(t, "page-pmid", result.ToUpdate[1].PageID)

		require.Len(t, result.Duplicates, 1)
		assert.Equal(t, "44444444", result.Duplicates[0].PMID)

		require.Len(t, result.Invalid, 1)
		assert.ErrorIs(t, result.Invalid[0].Err, domain.ErrMissingIdentifier)

		total := len(result.ToCreate) + len(result.ToUpdate) +
			len(result.Duplicates) + len(result.Invalid)
		assert.Equal(t, len(records), total)
	})

	t.Run("order preserved within each list", func(t *testing.T) {
		records := []domain.Record{
			{PMID: "1"}, {PMID: "2"}, {PMID: "3"},
		}
		result := Classify(records, Index{})

		require.Len(t, result.ToCreate, 3)
		assert.Equal(t, "1", result.ToCreate[0].PMID)
		assert.Equal(t, "2", result.ToCreate[1].PMID)
		assert.Equal(t, "3", result.ToCreate[2].PMID)
	})

	t.Run("empty batch", func(t *testing.T) {
		result := Classify(nil, index)
		assert.Empty(t, result.ToCreate)
		assert.Empty(t, result.ToUpdate)
	})
}
