// Package searchindex implements the denormalized ticket lookup used
// for substring search. The index is a projection of the tickets table
// kept in memory and persisted to disk as a serialized mapping, distinct
// from the relational rows.
package searchindex

import (
	"bytes"
	"io/fs"
	"os"
	"strings"

	"tickettriage/internal/errors"

	"github.com/fxamacker/cbor/v2"
	"github.com/natefinch/atomic"
)

// Entry is the indexed projection of one ticket.
type Entry struct {
	Title       string `cbor:"title" json:"title"`
	Description string `cbor:"description" json:"description"`
	Key         string `cbor:"ticket_key" json:"ticket_key"`
	CreatedAt   string `cbor:"created_at" json:"created_at"`
}

// Match is one search hit together with the ticket identity it belongs to.
type Match struct {
	ID string
	Entry
}

// Index maps ticket identities to their indexed projections, preserving
// insertion order so that search results iterate in the order tickets
// were first indexed. Not safe for concurrent use; the owning store
// serializes access.
type Index struct {
	path    string
	entries map[string]Entry
	order   []string
}

// snapshot is the on-disk form of the index.
type snapshot struct {
	Order   []string         `cbor:"order"`
	Entries map[string]Entry `cbor:"entries"`
}

// NewAt returns an empty index that persists to path.
func NewAt(path string) *Index {
	return &Index{
		path:    path,
		entries: make(map[string]Entry),
		order:   nil,
	}
}

// Load reads the index from path, returning an empty index when the file
// does not exist. A file that cannot be decoded is an error; the caller
// decides whether to rebuild from the relational tables.
func Load(path string) (*Index, error) {
	ix := Index{
		path:    path,
		entries: make(map[string]Entry),
		order:   nil,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ix, nil
		}
		return nil, errors.Wrap(err, "read index file")
	}

	var snap snapshot
	if err = cbor.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decode index file")
	}
	if snap.Entries != nil {
		ix.entries = snap.Entries
	}
	// Drop order entries whose mapping has gone missing so that iteration
	// never yields an identity without an entry.
	for _, id := range snap.Order {
		if _, ok := ix.entries[id]; ok {
			ix.order = append(ix.order, id)
		}
	}
	return &ix, nil
}

// Save persists the index to its file, replacing it atomically so a
// crash mid-write never leaves a truncated index behind.
func (ix *Index) Save() error {
	snap := snapshot{
		Order:   ix.order,
		Entries: ix.entries,
	}
	data, err := cbor.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encode index")
	}
	if err = atomic.WriteFile(ix.path, bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "write index file")
	}
	return nil
}

// Upsert adds or replaces the entry for id. An existing id keeps its
// position in the iteration order.
func (ix *Index) Upsert(id string, entry Entry) {
	if _, ok := ix.entries[id]; !ok {
		ix.order = append(ix.order, id)
	}
	ix.entries[id] = entry
}

// Delete removes the entry for id, if present.
func (ix *Index) Delete(id string) {
	if _, ok := ix.entries[id]; !ok {
		return
	}
	delete(ix.entries, id)
	for i, ordered := range ix.order {
		if ordered == id {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// Clear empties the index.
func (ix *Index) Clear() {
	ix.entries = make(map[string]Entry)
	ix.order = nil
}

// Len returns the number of indexed tickets.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Get returns the entry for id.
func (ix *Index) Get(id string) (Entry, bool) {
	entry, ok := ix.entries[id]
	return entry, ok
}

// Search returns up to limit entries whose title, description, or key
// contains query, compared case-insensitively, in index insertion order.
// An empty query matches every entry. A limit of zero or less means no
// cap.
func (ix *Index) Search(query string, limit int) []Match {
	query = strings.ToLower(query)
	var matches []Match
	for _, id := range ix.order {
		entry := ix.entries[id]
		if strings.Contains(strings.ToLower(entry.Title), query) ||
			strings.Contains(strings.ToLower(entry.Description), query) ||
			strings.Contains(strings.ToLower(entry.Key), query) {
			matches = append(matches, Match{ID: id, Entry: entry})
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches
}
