package searchindex_test

import (
	"os"
	"path/filepath"
	"testing"

	"tickettriage/internal/searchindex"

	"github.com/stretchr/testify/require"
)

func indexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "search_index.pkl")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	ix, err := searchindex.Load(indexPath(t))
	require.NoError(t, err)
	require.Equal(t, 0, ix.Len())
}

func TestLoad_CorruptFile(t *testing.T) {
	t.Parallel()
	path := indexPath(t)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := searchindex.Load(path)
	require.Error(t, err)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	path := indexPath(t)

	ix := searchindex.NewAt(path)
	ix.Upsert("b-ticket", searchindex.Entry{Title: "Second", Key: "b-ticket", CreatedAt: "2026-08-30T10:00:00Z"})
	ix.Upsert("a-ticket", searchindex.Entry{Title: "First", Key: "a-ticket", CreatedAt: "2026-08-31T10:00:00Z"})
	require.NoError(t, ix.Save())

	loaded, err := searchindex.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	entry, ok := loaded.Get("b-ticket")
	require.True(t, ok)
	require.Equal(t, "Second", entry.Title)

	// Insertion order survives the round trip even though it differs from
	// lexical order.
	matches := loaded.Search("", 0)
	require.Len(t, matches, 2)
	require.Equal(t, "b-ticket", matches[0].ID)
	require.Equal(t, "a-ticket", matches[1].ID)
}

func TestIndex_UpsertKeepsPosition(t *testing.T) {
	t.Parallel()
	ix := searchindex.NewAt(indexPath(t))
	ix.Upsert("one", searchindex.Entry{Title: "one"})
	ix.Upsert("two", searchindex.Entry{Title: "two"})
	ix.Upsert("one", searchindex.Entry{Title: "one updated"})

	matches := ix.Search("", 0)
	require.Len(t, matches, 2)
	require.Equal(t, "one", matches[0].ID)
	require.Equal(t, "one updated", matches[0].Title)
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()
	ix := searchindex.NewAt(indexPath(t))
	ix.Upsert("occ-1", searchindex.Entry{
		Title:       "Enable Editing of Occupation",
		Description: "Profile change",
		Key:         "PROJ-1",
	})
	ix.Upsert("dash-1", searchindex.Entry{
		Title:       "Dashboard charts",
		Description: "Add timeline chart",
		Key:         "PROJ-2",
	})

	tests := []struct {
		name    string
		query   string
		limit   int
		wantIDs []string
	}{
		{name: "title substring", query: "occup", limit: 10, wantIDs: []string{"occ-1"}},
		{name: "case-insensitive", query: "OCCUPATION", limit: 10, wantIDs: []string{"occ-1"}},
		{name: "description substring", query: "timeline", limit: 10, wantIDs: []string{"dash-1"}},
		{name: "key substring", query: "proj-2", limit: 10, wantIDs: []string{"dash-1"}},
		{name: "no match", query: "billing", limit: 10, wantIDs: nil},
		{name: "empty query matches all", query: "", limit: 10, wantIDs: []string{"occ-1", "dash-1"}},
		{name: "limit caps results", query: "", limit: 1, wantIDs: []string{"occ-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := ix.Search(tt.query, tt.limit)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestIndex_DeleteAndClear(t *testing.T) {
	t.Parallel()
	ix := searchindex.NewAt(indexPath(t))
	ix.Upsert("one", searchindex.Entry{Title: "one"})
	ix.Upsert("two", searchindex.Entry{Title: "two"})

	ix.Delete("one")
	require.Equal(t, 1, ix.Len())
	_, ok := ix.Get("one")
	require.False(t, ok)

	// Deleting an absent id is a no-op.
	ix.Delete("one")
	require.Equal(t, 1, ix.Len())

	ix.Clear()
	require.Equal(t, 0, ix.Len())
	require.Empty(t, ix.Search("", 0))
}
