package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfialkowski/urlshort/env"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlDuplicateEntry = 1062

type MySQLDB struct {
	db     *sql.DB
	logger *zap.Logger
}

func newMySQLContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, env.DurationOrDefault("mysql_timeout", 10*time.Second))
}

// CreateMySQLDB creates a MySQL-backed RecordDao.
// The dsn should be a MySQL DSN string, e.g.:
// "user:password@tcp(localhost:3306)/urlshort"
func CreateMySQLDB(dsn string, logger *zap.Logger) (RecordDao, error) {
	// Ensure parseTime=true is set for proper time handling
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open mysql database: %w", err)
	}

	db.SetMaxOpenConns(env.IntOrDefault("mysql_max_conns", 10))
	db.SetMaxIdleConns(env.IntOrDefault("mysql_max_idle_conns", 5))
	db.SetConnMaxLifetime(time.Duration(env.IntOrDefault("mysql_conn_max_lifetime_minutes", 5)) * time.Minute)

	ctx, cancel := newMySQLContext(context.Background())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to connect to mysql: %w", err)
	}

	mysqlDB := &MySQLDB{db: db, logger: logger}
	if err := mysqlDB.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return mysqlDB, nil
}

func (d *MySQLDB) initSchema(ctx context.Context) error {
	// ids are case sensitive, so the key column needs a binary collation
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS records (
			id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin PRIMARY KEY,
			url TEXT NOT NULL,
			visits BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := d.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("error creating records table: %w", err)
	}
	return nil
}

func (d *MySQLDB) Cleanup() {
	_ = d.db.Close()
}

func (d *MySQLDB) IsLikelyOk() bool {
	ctx, cancel := newMySQLContext(context.Background())
	defer cancel()

	if err := d.db.PingContext(ctx); err != nil {
		d.logger.Warn("mysql ping failed", zap.Error(err))
		return false
	}
	return true
}

func (d *MySQLDB) Get(ctx context.Context, id string) (Record, error) {
	ctx, cancel := newMySQLContext(ctx)
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

func (d *MySQLDB) Set(ctx context.Context, id string, rec Record) error {
	ctx, cancel := newMySQLContext(ctx)
	defer cancel()

	sqlStmt := `
		INSERT INTO records (id, url, visits) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE url = VALUES(url), visits = VALUES(visits)
	`
	if _, err := d.db.ExecContext(ctx, sqlStmt, id, rec.Url, rec.Visits); err != nil {
		return fmt.Errorf("couldn't store %s: %w", id, err)
	}
	return nil
}

func (d *MySQLDB) Create(ctx context.Context, id string, rec Record) error {
	ctx, cancel := newMySQLContext(ctx)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `INSERT INTO records (id, url, visits) VALUES (?, ?, ?)`,
		id, rec.Url, rec.Visits)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrExists
		}
		return fmt.Errorf("couldn't store %s: %w", id, err)
	}
	return nil
}

func (d *MySQLDB) IncrementVisits(ctx context.Context, id string) (Record, error) {
	ctx, cancel := newMySQLContext(ctx)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `UPDATE records SET visits = visits + 1 WHERE id = ?`, id)
	if err != nil {
		return Record{}, fmt.Errorf("error incrementing visits for %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return Record{}, ErrNotFound
	}

	rec := Record{Id: id}
	if err := tx.QueryRowContext(ctx, `SELECT url, visits FROM records WHERE id = ?`, id).
		Scan(&rec.Url, &rec.Visits); err != nil {
		return Record{}, fmt.Errorf("error reading record %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("error committing visit for %s: %w", id, err)
	}
	return rec, nil
}
