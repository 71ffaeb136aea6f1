// Package store implements durable, queryable storage for tickets and
// their generated analysis artifacts. It is the sole authority for the
// schema shape and for keeping the search index consistent with the
// relational rows.
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"tickettriage/internal/db"
	"tickettriage/internal/errors"
	"tickettriage/internal/searchindex"
)

// ErrNotFound is returned by Get when no ticket exists for the identity.
var ErrNotFound = errors.NewSentinel("ticket not found")

// Store persists tickets, questions, and test cases in SQLite under a
// storage directory and maintains a substring-search index next to the
// database file.
//
// Layout under the storage directory:
//
//	database/tickets.db        relational tables
//	database/search_index.pkl  serialized search index
//	files/                     reserved for per-ticket artifacts
//
// Store is safe for use from multiple goroutines in one process;
// concurrent writers from multiple processes are out of scope.
type Store struct {
	dir    string
	dbs    *db.Database
	logger *slog.Logger

	// mu serializes access to the search index and its file.
	mu    sync.Mutex
	index *searchindex.Index
}

// New opens (creating if absent) the store rooted at dir. It ensures the
// directory tree exists, applies pending schema migrations, and loads
// the persisted search index. Safe to call repeatedly on the same
// directory, including directories created by older schema versions.
func New(ctx context.Context, dir string, logger *slog.Logger) (*Store, error) {
	var err error
	for _, sub := range []string{"database", "files"} {
		if err = os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errors.Wrap(err, "create storage directory", slog.String("dir", dir))
		}
	}

	var dbs *db.Database
	if dbs, err = db.New(ctx, filepath.Join(dir, "database", "tickets.db"), logger); err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	s := Store{
		dir:    dir,
		dbs:    dbs,
		logger: logger.With("source", "store"),
		index:  nil,
	}

	indexPath := filepath.Join(dir, "database", "search_index.pkl")
	if s.index, err = searchindex.Load(indexPath); err != nil {
		// An unreadable index file (e.g. one written by an older version
		// of the tool in another format) is not fatal: the relational
		// tables are authoritative, so rebuild the projection from them.
		s.logger.LogAttrs(ctx, slog.LevelWarn, "search index unreadable, rebuilding",
			errors.SlogError(err))
		s.index = searchindex.NewAt(indexPath)
		if err = s.RebuildIndex(ctx); err != nil {
			return nil, errors.Wrap(err, "rebuild search index")
		}
	}

	return &s, nil
}

// Close releases the database connections. The search index is already
// durable; it is persisted after every mutation.
func (s *Store) Close() error {
	if err := s.dbs.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	return nil
}

// Dir returns the storage directory the store was opened with.
func (s *Store) Dir() string {
	return s.dir
}

// RebuildIndex repopulates the search index from the tickets table and
// persists it, discarding whatever the index held before.
func (s *Store) RebuildIndex(ctx context.Context) error {
	rows, err := s.dbs.ReadOnly.QueryContext(ctx, `SELECT id, COALESCE(ticket_key, id), COALESCE(title, ''),
       COALESCE(description, ''), COALESCE(created_at, '')
FROM tickets
ORDER BY created_at`)
	if err != nil {
		return errors.Wrap(err, "query tickets")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("could not close rows", errors.SlogError(closeErr))
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Clear()
	for rows.Next() {
		var (
			id    string
			entry searchindex.Entry
		)
		if err = rows.Scan(&id, &entry.Key, &entry.Title, &entry.Description, &entry.CreatedAt); err != nil {
			return errors.Wrap(err, "scan ticket")
		}
		s.index.Upsert(id, entry)
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "rows error")
	}
	if err = s.index.Save(); err != nil {
		return errors.Wrap(err, "save search index")
	}
	return nil
}
