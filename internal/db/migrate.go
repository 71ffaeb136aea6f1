package db

import (
	"context"
	"log/slog"
	"slices"

	"tickettriage/internal/errors"

	"github.com/jmoiron/sqlx"
)

// migration is one step of the versioned schema history. Every step must
// be idempotent: databases created before versioning was introduced have
// an empty schema_migrations table even though their tables already
// exist, so each step re-checks the live schema before altering it.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sqlx.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create core tables",
		apply:   createCoreTables,
	},
	{
		version: 2,
		name:    "rename questions.question to question_text",
		apply:   migrateQuestionColumns,
	},
	{
		version: 3,
		name:    "rename test_cases.test_case to test_case_text",
		apply:   migrateTestCaseColumns,
	},
	{
		version: 4,
		name:    "add test_cases.category",
		apply:   addTestCaseCategory,
	},
}

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *Database) migrate(ctx context.Context) error {
	if _, err := db.ReadWrite.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`); err != nil {
		return errors.Wrap(err, "create schema_migrations table")
	}

	var current int
	if err := db.ReadWrite.GetContext(ctx, &current,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return errors.Wrap(err, "read schema version")
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		db.logger.LogAttrs(ctx, slog.LevelInfo, "applying migration",
			slog.Int("version", m.version), slog.String("name", m.name))
		if err := db.applyMigration(ctx, m); err != nil {
			return errors.Wrap(err, "apply migration",
				slog.Int("version", m.version), slog.String("name", m.name))
		}
	}

	return nil
}

func (db *Database) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err = m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return errors.Wrap(err, "record migration")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func createCoreTables(ctx context.Context, tx *sqlx.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
    id TEXT PRIMARY KEY,
    ticket_key TEXT,
    title TEXT,
    description TEXT,
    created_at TIMESTAMP,
    updated_at TIMESTAMP,
    analysis_data TEXT
)`,
		`CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id TEXT,
    question_text TEXT,
    question_type TEXT,
    FOREIGN KEY (ticket_id) REFERENCES tickets (id)
)`,
		`CREATE TABLE IF NOT EXISTS test_cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id TEXT,
    test_case_text TEXT,
    category TEXT,
    FOREIGN KEY (ticket_id) REFERENCES tickets (id)
)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create table", slog.String("statement", stmt))
		}
	}
	return nil
}

// migrateQuestionColumns brings a legacy questions table with a bare
// "question" column up to the current shape and backfills the text.
func migrateQuestionColumns(ctx context.Context, tx *sqlx.Tx) error {
	columns, err := tableColumns(ctx, tx, "questions")
	if err != nil {
		return err
	}
	if !slices.Contains(columns, "question_text") {
		if _, err = tx.ExecContext(ctx, `ALTER TABLE questions ADD COLUMN question_text TEXT`); err != nil {
			return errors.Wrap(err, "add question_text column")
		}
		columns = append(columns, "question_text")
	}
	if !slices.Contains(columns, "question_type") {
		if _, err = tx.ExecContext(ctx, `ALTER TABLE questions ADD COLUMN question_type TEXT`); err != nil {
			return errors.Wrap(err, "add question_type column")
		}
	}
	if slices.Contains(columns, "question") {
		if _, err = tx.ExecContext(ctx,
			`UPDATE questions SET question_text = question WHERE question_text IS NULL`); err != nil {
			return errors.Wrap(err, "backfill question_text from question")
		}
	}
	return nil
}

// migrateTestCaseColumns is the test_cases counterpart of
// migrateQuestionColumns.
func migrateTestCaseColumns(ctx context.Context, tx *sqlx.Tx) error {
	columns, err := tableColumns(ctx, tx, "test_cases")
	if err != nil {
		return err
	}
	if !slices.Contains(columns, "test_case_text") {
		if _, err = tx.ExecContext(ctx, `ALTER TABLE test_cases ADD COLUMN test_case_text TEXT`); err != nil {
			return errors.Wrap(err, "add test_case_text column")
		}
		columns = append(columns, "test_case_text")
	}
	if slices.Contains(columns, "test_case") {
		if _, err = tx.ExecContext(ctx,
			`UPDATE test_cases SET test_case_text = test_case WHERE test_case_text IS NULL`); err != nil {
			return errors.Wrap(err, "backfill test_case_text from test_case")
		}
	}
	return nil
}

func addTestCaseCategory(ctx context.Context, tx *sqlx.Tx) error {
	columns, err := tableColumns(ctx, tx, "test_cases")
	if err != nil {
		return err
	}
	if !slices.Contains(columns, "category") {
		if _, err = tx.ExecContext(ctx, `ALTER TABLE test_cases ADD COLUMN category TEXT`); err != nil {
			return errors.Wrap(err, "add category column")
		}
	}
	return nil
}

// tableColumns lists the column names of a table in the live schema.
func tableColumns(ctx context.Context, tx *sqlx.Tx, table string) ([]string, error) {
	var columns []string
	if err := tx.SelectContext(ctx, &columns,
		`SELECT name FROM PRAGMA_TABLE_INFO(?)`, table); err != nil {
		return nil, errors.Wrap(err, "query table columns", slog.String("table", table))
	}
	return columns, nil
}
