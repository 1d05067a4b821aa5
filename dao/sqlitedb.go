package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfialkowski/urlshort/env"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db     *sql.DB
	logger *zap.Logger
}

func newSqliteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, env.DurationOrDefault("sqlite_timeout", 10*time.Second))
}

// CreateSQLiteDB creates a SQLite-backed RecordDao.
// The dbPath should be a path to the SQLite database file, e.g.:
// "./urlshort.db" or ":memory:" for in-memory database
func CreateSQLiteDB(dbPath string, logger *zap.Logger) (RecordDao, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also keeps
	// ":memory:" databases alive for the life of the pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn("could not enable WAL mode", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("could not set busy timeout", zap.Error(err))
	}

	sqliteDB := &SQLiteDB{db: db, logger: logger}
	if err := sqliteDB.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqliteDB, nil
}

func (d *SQLiteDB) initSchema() error {
	ctx, cancel := newSqliteContext(context.Background())
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			visits INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := d.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("error creating records table: %w", err)
	}
	return nil
}

func (d *SQLiteDB) Cleanup() {
	_ = d.db.Close()
}

func (d *SQLiteDB) IsLikelyOk() bool {
	ctx, cancel := newSqliteContext(context.Background())
	defer cancel()

	if err := d.db.PingContext(ctx); err != nil {
		d.logger.Warn("sqlite ping failed", zap.Error(err))
		return false
	}
	return true
}

func (d *SQLiteDB) Get(ctx context.Context, id string) (Record, error) {
	ctx, cancel := newSqliteContext(ctx)
	defer cancel()

	rec := Record{Id: id}
	err := d.db.QueryRowContext(ctx, `SELECT url, visits FROM records WHERE id = ?`, id).
		Scan(&rec.Url, &rec.Visits)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("error getting record %s: %w", id, err)
	}
	return rec, nil
}

func (d *SQLiteDB) Set(ctx context.Context, id string, rec Record) error {
	ctx, cancel := newSqliteContext(ctx)
	defer cancel()

	sqlStmt := `
		INSERT INTO records (id, url, visits) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET url = excluded.url, visits = excluded.visits
	`
	if _, err := d.db.ExecContext(ctx, sqlStmt, id, rec.Url, rec.Visits); err != nil {
		return fmt.Errorf("couldn't store %s: %w", id, err)
	}
	return nil
}

func (d *SQLiteDB) Create(ctx context.Context, id string, rec Record) error {
	ctx, cancel := newSqliteContext(ctx)
	defer cancel()

	sqlStmt := `
		INSERT INTO records (id, url, visits) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := d.db.ExecContext(ctx, sqlStmt, id, rec.Url, rec.Visits)
	if err != nil {
		return fmt.Errorf("couldn't store %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

func (d *SQLiteDB) IncrementVisits(ctx context.Context, id string) (Record, error) {
	ctx, cancel := newSqliteContext(ctx)
	defer cancel()

	rec := Record{Id: id}
	err := d.db.QueryRowContext(ctx,
		`UPDATE records SET visits = visits + 1 WHERE id = ? RETURNING url, visits`, id).
		Scan(&rec.Url, &rec.Visits)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("error incrementing visits for %s: %w", id, err)
	}
	return rec, nil
}
