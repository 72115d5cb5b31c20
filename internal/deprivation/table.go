// Package deprivation imports the postcode deprivation index and classifies
// postcodes against it.
package deprivation

import (
	"context"
	"errors"

	"careanalytics/internal/core"
)

var (
	// ErrTableMissing is returned when the lookup table is absent and
	// creation is disabled.
	ErrTableMissing = errors.New("deprivation table does not exist")
	// ErrTableNotReady is returned when a newly created table never became queryable.
	ErrTableNotReady = errors.New("deprivation table not ready")
	// ErrRetriesExhausted is returned when a batch still has unprocessed
	// records after the configured number of retries.
	ErrRetriesExhausted = errors.New("batch write retries exhausted")
)

// Table is the keyed store holding deprivation records by normalized postcode.
type Table interface {
	// TableExists reports whether the table has been created.
	TableExists(ctx context.Context) (bool, error)
	// CreateTable starts creating the table. It may return before the table
	// is queryable; use TableReady to poll.
	CreateTable(ctx context.Context) error
	// TableReady reports whether the table accepts reads and writes.
	TableReady(ctx context.Context) (bool, error)
	// BatchPut upserts records by postcode and returns the subset that was
	// not processed and should be retried.
	BatchPut(ctx context.Context, records []core.DeprivationRecord) (unprocessed []core.DeprivationRecord, err error)
	// Get looks up one normalized postcode.
	Get(ctx context.Context, postcode string) (core.DeprivationRecord, bool, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Lookup is the read side used by the classifier.
type Lookup interface {
	Get(ctx context.Context, postcode string) (core.DeprivationRecord, bool, error)
}
