package deprivation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"careanalytics/internal/core"
	applog "careanalytics/internal/log"
)

// ErrNoValidRows means the input had rows but none of them parsed.
var ErrNoValidRows = errors.New("no valid deprivation rows")

// LoaderConfig controls batching, retries and table creation.
type LoaderConfig struct {
	BatchSize     int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	CreateTable   bool
	ReadyAttempts int
	ReadyInterval time.Duration
}

// DefaultLoaderConfig returns the settings used when none are configured.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		BatchSize:     25,
		MaxRetries:    8,
		BackoffBase:   100 * time.Millisecond,
		BackoffMax:    5 * time.Second,
		CreateTable:   false,
		ReadyAttempts: 30,
		ReadyInterval: time.Second,
	}
}

// LoadResult summarizes one import run.
type LoadResult struct {
	RowsRead    int
	RowsSkipped int
	RowsWritten int
	Batches     int
	Retries     int
}

// LoaderMetrics receives import counters. A nil value disables metrics.
type LoaderMetrics interface {
	AddRows(outcome string, n int)
	IncRetries()
}

// Loader bulk-imports a postcode deprivation CSV into a Table.
type Loader struct {
	table   Table
	cfg     LoaderConfig
	logger  *applog.Logger
	metrics LoaderMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewLoader creates a loader. Unset sizes and durations fall back to
// DefaultLoaderConfig; MaxRetries of zero disables retries.
func NewLoader(table Table, cfg LoaderConfig, logger *applog.Logger, metrics LoaderMetrics) *Loader {
	def := DefaultLoaderConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.ReadyAttempts < 1 {
		cfg.ReadyAttempts = def.ReadyAttempts
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = def.ReadyInterval
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Loader{
		table:   table,
		cfg:     cfg,
		logger:  logger.WithComponent(applog.ComponentLoader),
		metrics: metrics,
		sleep:   sleepContext,
	}
}

// LoadFile imports the CSV at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("open deprivation csv: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load imports CSV rows from r. Bad rows are skipped and logged; storage
// failures abort the import, as does input where every row is bad. Re-running on the same input leaves the table
// in the same state.
func (l *Loader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	var res LoadResult

	if err := l.ensureTable(ctx); err != nil {
		return res, err
	}

	rows, err := newRowReader(r, func(rowErr *RowError) {
		res.RowsRead++
		res.RowsSkipped++
		l.logger.WarnContext(ctx, "Skipping deprivation row",
			"line", rowErr.Line,
			applog.FieldError, rowErr.Err.Error())
	})
	if err != nil {
		return res, err
	}

	batch := make([]core.DeprivationRecord, 0, l.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		retries, err := l.writeBatch(ctx, batch)
		res.Retries += retries
		if err != nil {
			return err
		}
		res.Batches++
		res.RowsWritten += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, ok, err := rows.next()
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		res.RowsRead++
		batch = append(batch, rec)
		if len(batch) == l.cfg.BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	l.record(res)
	if res.RowsWritten == 0 && res.RowsSkipped > 0 {
		return res, fmt.Errorf("%w: %d rows skipped", ErrNoValidRows, res.RowsSkipped)
	}
	l.logger.InfoContext(ctx, "Deprivation import completed",
		"rows_read", res.RowsRead,
		"rows_skipped", res.RowsSkipped,
		"rows_written", res.RowsWritten,
		"batches", res.Batches,
		"retries", res.Retries)
	return res, nil
}

// ensureTable makes sure the table exists and is queryable before writing.
func (l *Loader) ensureTable(ctx context.Context) error {
	exists, err := l.table.TableExists(ctx)
	if err != nil {
		return fmt.Errorf("check deprivation table: %w", err)
	}
	if exists {
		return nil
	}
	if !l.cfg.CreateTable {
		return ErrTableMissing
	}

	l.logger.InfoContext(ctx, "Creating deprivation table")
	if err := l.table.CreateTable(ctx); err != nil {
		return fmt.Errorf("create deprivation table: %w", err)
	}

	for attempt := 1; attempt <= l.cfg.ReadyAttempts; attempt++ {
		ready, err := l.table.TableReady(ctx)
		if err != nil {
			return fmt.Errorf("poll deprivation table: %w", err)
		}
		if ready {
			l.logger.InfoContext(ctx, "Deprivation table ready", "attempts", attempt)
			return nil
		}
		if attempt == l.cfg.ReadyAttempts {
			break
		}
		if err := l.sleep(ctx, l.cfg.ReadyInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrTableNotReady, l.cfg.ReadyAttempts)
}

// writeBatch writes records, retrying only the unprocessed subset with
// exponential backoff. It returns the number of retries performed.
func (l *Loader) writeBatch(ctx context.Context, records []core.DeprivationRecord) (int, error) {
	pending := records
	for attempt := 0; ; attempt++ {
		unprocessed, err := l.table.BatchPut(ctx, pending)
		if err != nil {
			return attempt, fmt.Errorf("batch put: %w", err)
		}
		if len(unprocessed) == 0 {
			return attempt, nil
		}
		if attempt >= l.cfg.MaxRetries {
			return attempt, fmt.Errorf("%w: %d records unprocessed after %d retries", ErrRetriesExhausted, len(unprocessed), attempt)
		}

		delay := l.backoff(attempt)
		l.logger.WarnContext(ctx, "Retrying unprocessed deprivation records",
			"unprocessed", len(unprocessed),
			"attempt", attempt+1,
			"delay", delay.String())
		if l.metrics != nil {
			l.metrics.IncRetries()
		}
		if err := l.sleep(ctx, delay); err != nil {
			return attempt, err
		}
		pending = unprocessed
	}
}

// backoff doubles BackoffBase per attempt, capped at BackoffMax.
func (l *Loader) backoff(attempt int) time.Duration {
	d := l.cfg.BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= l.cfg.BackoffMax {
			return l.cfg.BackoffMax
		}
	}
	return d
}

func (l *Loader) record(res LoadResult) {
	if l.metrics == nil {
		return
	}
	l.metrics.AddRows("read", res.RowsRead)
	l.metrics.AddRows("skipped", res.RowsSkipped)
	l.metrics.AddRows("written", res.RowsWritten)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
