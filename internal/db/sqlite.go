package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tickettriage/internal/errors"
	"tickettriage/internal/random"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3" // Enable sqlite3 driver
)

// Database holds the two connection pools backing the ticket store.
//
// The read-write pool is capped at a single connection so that SQLite
// writes are serialized in-process. This is a best practice mentioned in
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
type Database struct {
	ReadWrite *sqlx.DB
	ReadOnly  *sqlx.DB
	logger    *slog.Logger
}

// New connects to the SQLite database at url and applies pending schema
// migrations. The url is a path to the database file or ":memory:" for
// an in-memory database. Safe to call repeatedly on the same file.
func New(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	var (
		err         error
		readWriteDB *sqlx.DB
		readDB      *sqlx.DB
	)

	// For in-memory databases, we need shared cache mode so that both pools
	// access the same data. Each caller gets a uniquely named database so
	// that parallel tests do not share state. See https://www.sqlite.org/inmemorydb.html.
	isInMemory := strings.Contains(url, ":memory:")
	inMemoryConfig := ""
	if isInMemory {
		var (
			randomID     string
			dbNameLength uint = 20
		)
		if randomID, err = random.Letters(dbNameLength); err != nil {
			return nil, errors.Wrap(err, "generate random ID")
		}
		url = randomID
		inMemoryConfig = "&mode=memory&cache=shared"
	}
	commonConfig := strings.Join([]string{
		// Write-ahead logging enables higher performance and concurrent readers.
		"_journal_mode=wal",
		// Avoids SQLITE_BUSY errors when database is under load.
		"_busy_timeout=5000",
		// Increases performance at the cost of durability https://www.sqlite.org/pragma.html#pragma_synchronous.
		"_synchronous=normal",
		// Foreign keys stay unenforced: ticket upserts use INSERT OR
		// REPLACE while child rows keep referencing the same identity, and
		// legacy databases contain orphaned child rows.
	}, "&")

	readWriteConfig := fmt.Sprintf("file:%s?_txlock=immediate&%s%s", url, commonConfig, inMemoryConfig)
	if readWriteDB, err = sqlx.ConnectContext(ctx, "sqlite3", readWriteConfig); err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}

	readWriteDB.SetMaxOpenConns(1)
	readWriteDB.SetMaxIdleConns(1)
	readWriteDB.SetConnMaxLifetime(time.Hour)
	readWriteDB.SetConnMaxIdleTime(time.Hour)

	db := Database{
		ReadWrite: readWriteDB,
		ReadOnly:  nil,
		logger:    logger,
	}

	if err = db.migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}

	// The read pool is opened after migration so that the database file
	// exists by the time the read-only mode is requested.
	readConfig := fmt.Sprintf("file:%s?_txlock=deferred&%s%s", url, commonConfig, inMemoryConfig)
	if !isInMemory {
		// The mode=ro flag doesn't work together with cache=shared on
		// in-memory databases.
		readConfig = fmt.Sprintf("file:%s?mode=ro&_query_only=true&_txlock=deferred&%s", url, commonConfig)
	}
	if readDB, err = sqlx.ConnectContext(ctx, "sqlite3", readConfig); err != nil {
		return nil, errors.Wrap(err, "open read-only database")
	}

	maxReadConns := 10
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns)
	readDB.SetConnMaxLifetime(time.Hour)
	readDB.SetConnMaxIdleTime(time.Hour)

	db.ReadOnly = readDB

	return &db, nil
}

// Close closes both connection pools.
func (db *Database) Close() error {
	var errs []error
	if err := db.ReadWrite.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close read-write database"))
	}
	if db.ReadOnly != nil {
		if err := db.ReadOnly.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close read-only database"))
		}
	}
	return errors.Join(errs...)
}
