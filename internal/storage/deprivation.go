package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ErrInvalidTableName is returned for table names that are not plain identifiers.
var ErrInvalidTableName = errors.New("invalid deprivation table name")

// DeprivationTable stores deprivation records keyed by normalized postcode.
// It is created on demand rather than by migrations so imports can decide
// whether a missing table is an error.
type DeprivationTable struct {
	db   *sql.DB
	name string
}

func newDeprivationTable(db *sql.DB, name string) (*DeprivationTable, error) {
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return &DeprivationTable{db: db, name: name}, nil
}

var _ deprivation.Table = (*DeprivationTable)(nil)

// Name returns the table name.
func (t *DeprivationTable) Name() string {
	return t.name
}

func (t *DeprivationTable) TableExists(ctx context.Context) (bool, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, t.name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", t.name, err)
	}
	return n > 0, nil
}

func (t *DeprivationTable) CreateTable(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		postcode      TEXT PRIMARY KEY,
		income_decile INTEGER NOT NULL CHECK (income_decile BETWEEN 1 AND 10),
		health_decile INTEGER NOT NULL CHECK (health_decile BETWEEN 1 AND 10)
	) WITHOUT ROWID`, t.name))
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}
	slog.InfoContext(ctx, "Deprivation table created", "table", t.name)
	return nil
}

// TableReady reports whether the table can be queried.
func (t *DeprivationTable) TableReady(ctx context.Context) (bool, error) {
	exists, err := t.TableExists(ctx)
	if err != nil || !exists {
		return false, err
	}
	var one int
	err = t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, t.name)).Scan(&one)
	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return true, nil
	case isBusy(err):
		return false, nil
	default:
		return false, fmt.Errorf("query table %s: %w", t.name, err)
	}
}

// BatchPut upserts records in one transaction. When the database is busy or
// locked the whole batch is returned as unprocessed for the caller to retry.
func (t *DeprivationTable) BatchPut(ctx context.Context, records []core.DeprivationRecord) ([]core.DeprivationRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	err := t.putAll(ctx, records)
	if isBusy(err) {
		slog.WarnContext(ctx, "Deprivation batch deferred, database busy", "records", len(records))
		return records, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (t *DeprivationTable) putAll(ctx context.Context, records []core.DeprivationRecord) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (postcode, income_decile, health_decile)
		VALUES (?, ?, ?)
		ON CONFLICT (postcode) DO UPDATE SET
			income_decile = excluded.income_decile, health_decile = excluded.health_decile`, t.name))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %q: %w", rec.Postcode, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Postcode, rec.IncomeDecile, rec.HealthDecile); err != nil {
			return fmt.Errorf("upsert %q: %w", rec.Postcode, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get looks up one normalized postcode.
func (t *DeprivationTable) Get(ctx context.Context, postcode string) (core.DeprivationRecord, bool, error) {
	rec := core.DeprivationRecord{Postcode: postcode}
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT income_decile, health_decile FROM %s WHERE postcode = ?`, t.name), postcode).
		Scan(&rec.IncomeDecile, &rec.HealthDecile)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DeprivationRecord{}, false, nil
	}
	if err != nil {
		return core.DeprivationRecord{}, false, fmt.Errorf("get postcode %q: %w", postcode, err)
	}
	return rec, true, nil
}

func (t *DeprivationTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// All returns every record ordered by postcode.
func (t *DeprivationTable) All(ctx context.Context) ([]core.DeprivationRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT postcode, income_decile, health_decile FROM %s ORDER BY postcode`, t.name))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []core.DeprivationRecord
	for rows.Next() {
		var rec core.DeprivationRecord
		if err := rows.Scan(&rec.Postcode, &rec.IncomeDecile, &rec.HealthDecile); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}
