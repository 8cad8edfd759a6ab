// Package portaldb maintains the citizen portal database: full reset and
// removal of all user data. It never serves portal traffic.
package portaldb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Tables in dependency order: every table only references tables after it.
var Tables = []string{
	"applications",
	"documents",
	"electricity_accounts",
	"gas_accounts",
	"water_accounts",
	"property_accounts",
	"users",
}

// accountTables hold the portal credentials of each utility.
var accountTables = []string{
	"electricity_accounts",
	"gas_accounts",
	"water_accounts",
	"property_accounts",
}

// Counts is the number of rows per kind of user data.
type Counts struct {
	Users        int64
	Documents    int64
	Applications int64
	Accounts     int64
}

// DB is an open portal database.
type DB struct {
	db *sql.DB
}

// Open opens the SQLite database at dsn and creates missing tables.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases alive across statements
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Counts returns the current amount of user data.
func (d *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"users", &c.Users},
		{"documents", &c.Documents},
		{"applications", &c.Applications},
	} {
		n, err := count(ctx, d.db, q.table)
		if err != nil {
			return Counts{}, err
		}
		*q.dst = n
	}
	for _, table := range accountTables {
		n, err := count(ctx, d.db, table)
		if err != nil {
			return Counts{}, err
		}
		c.Accounts += n
	}
	return c, nil
}

// Reset drops every portal table and recreates them empty.
func (d *DB) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range Tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	return tx.Commit()
}

// PurgeUsers deletes applications, documents, account credentials and users
// in one transaction and returns what was deleted.
func (d *DB) PurgeUsers(ctx context.Context) (Counts, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted Counts
	for _, table := range Tables {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return Counts{}, fmt.Errorf("delete %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Counts{}, fmt.Errorf("rows affected %s: %w", table, err)
		}
		switch table {
		case "users":
			deleted.Users = n
		case "documents":
			deleted.Documents = n
		case "applications":
			deleted.Applications = n
		default:
			deleted.Accounts += n
		}
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit purge: %w", err)
	}
	return deleted, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func count(ctx context.Context, q queryer, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
