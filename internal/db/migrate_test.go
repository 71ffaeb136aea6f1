package db_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"tickettriage/internal/db"
	"tickettriage/internal/testhelpers"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newDatabase(t *testing.T, path string) *db.Database {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	database, err := db.New(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return database
}

func TestNew_CreatesSchema(t *testing.T) {
	t.Parallel()
	database := newDatabase(t, filepath.Join(t.TempDir(), "tickets.db"))

	var tables []string
	err := database.ReadOnly.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	require.Contains(t, tables, "tickets")
	require.Contains(t, tables, "questions")
	require.Contains(t, tables, "test_cases")
	require.Contains(t, tables, "schema_migrations")
}

func TestNew_InMemory(t *testing.T) {
	t.Parallel()
	database := newDatabase(t, ":memory:")

	_, err := database.ReadWrite.Exec(
		`INSERT INTO tickets (id, ticket_key, title) VALUES ('t1', 't1', 'hello')`)
	require.NoError(t, err)

	var title string
	require.NoError(t, database.ReadOnly.Get(&title, `SELECT title FROM tickets WHERE id = 't1'`))
	require.Equal(t, "hello", title)
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)

	first, err := db.New(ctx, path, logger)
	require.NoError(t, err)
	_, err = first.ReadWrite.Exec(`INSERT INTO tickets (id, ticket_key, title) VALUES ('t1', 't1', 'kept')`)
	require.NoError(t, err)

	var version int
	require.NoError(t, first.ReadWrite.Get(&version, `SELECT MAX(version) FROM schema_migrations`))
	require.NoError(t, first.Close())

	second, err := db.New(ctx, path, logger)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, second.Close())
	}()

	var versionAfter int
	require.NoError(t, second.ReadOnly.Get(&versionAfter, `SELECT MAX(version) FROM schema_migrations`))
	require.Equal(t, version, versionAfter, "rerunning migrations must be a no-op")

	var count int
	require.NoError(t, second.ReadOnly.Get(&count, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version))
	require.Equal(t, 1, count, "no duplicate migration records")

	var title string
	require.NoError(t, second.ReadOnly.Get(&title, `SELECT title FROM tickets WHERE id = 't1'`))
	require.Equal(t, "kept", title)
}

// TestMigrate_LegacySchema exercises a database created by a version of
// the tool that predates both versioned migrations and the renamed child
// columns.
func TestMigrate_LegacySchema(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tickets.db")

	legacy, err := sqlx.Connect("sqlite3", "file:"+path)
	require.NoError(t, err)
	statements := []string{
		`CREATE TABLE tickets (
    id TEXT PRIMARY KEY,
    ticket_key TEXT,
    title TEXT,
    description TEXT,
    created_at TIMESTAMP,
    updated_at TIMESTAMP,
    analysis_data TEXT
)`,
		`CREATE TABLE questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id TEXT,
    question TEXT
)`,
		`CREATE TABLE test_cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id TEXT,
    test_case TEXT
)`,
		`INSERT INTO tickets (id, ticket_key, title) VALUES ('old-1', 'old-1', 'legacy ticket')`,
		`INSERT INTO questions (ticket_id, question) VALUES ('old-1', 'What about rollback?')`,
		`INSERT INTO test_cases (ticket_id, test_case) VALUES ('old-1', 'Verify rollback works')`,
	}
	for _, stmt := range statements {
		_, err = legacy.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, legacy.Close())

	database := newDatabase(t, path)

	var questionText string
	require.NoError(t, database.ReadOnly.Get(&questionText,
		`SELECT question_text FROM questions WHERE ticket_id = 'old-1'`))
	require.Equal(t, "What about rollback?", questionText, "backfilled from the legacy column")

	var testCaseText string
	require.NoError(t, database.ReadOnly.Get(&testCaseText,
		`SELECT test_case_text FROM test_cases WHERE ticket_id = 'old-1'`))
	require.Equal(t, "Verify rollback works", testCaseText)

	// The category column arrived with migration 4.
	var categoryCount int
	require.NoError(t, database.ReadOnly.Get(&categoryCount,
		`SELECT COUNT(*) FROM PRAGMA_TABLE_INFO('test_cases') WHERE name = 'category'`))
	require.Equal(t, 1, categoryCount)
}
