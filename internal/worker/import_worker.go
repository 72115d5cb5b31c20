package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"careanalytics/internal/amqp"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
)

// Importer runs one deprivation CSV import.
type Importer interface {
	LoadFile(ctx context.Context, path string) (deprivation.LoadResult, error)
}

// CacheInvalidator drops cached classifications after the table changes.
type CacheInvalidator interface {
	Invalidate()
}

// ImportWorker handles deprivation import jobs delivered over AMQP.
type ImportWorker struct {
	newImporter func(createTable bool) Importer
	cache       CacheInvalidator
	importDir   string
	logger      *applog.Logger
}

// NewImportWorker creates a worker. newImporter builds a loader honouring the
// job's table creation flag; cache may be nil. Jobs naming files outside
// importDir are rejected.
func NewImportWorker(newImporter func(createTable bool) Importer, cache CacheInvalidator, importDir string, logger *applog.Logger) *ImportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if importDir == "" {
		importDir = "."
	}
	return &ImportWorker{
		newImporter: newImporter,
		cache:       cache,
		importDir:   importDir,
		logger:      logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleImportMessage processes a single import job. Failures that a retry
// cannot fix are wrapped with amqp.ErrReject.
func (w *ImportWorker) HandleImportMessage(ctx context.Context, msg *amqp.ImportMessage) error {
	started := time.Now()
	logger := w.logger.With(applog.FieldJobID, msg.JobID.String(), applog.FieldFile, msg.Path)
	logger.InfoContext(ctx, "Processing import job", "create_table", msg.CreateTable)

	path, err := deprivation.ResolveImportPath(w.importDir, msg.Path)
	if err != nil {
		logger.ErrorContext(ctx, "Import job rejected", applog.FieldError, err.Error())
		return fmt.Errorf("%w: %w", amqp.ErrReject, err)
	}

	res, err := w.newImporter(msg.CreateTable).LoadFile(ctx, path)
	if err != nil {
		logger.ErrorContext(ctx, "Import job failed", applog.FieldError, err.Error())
		if permanent(err) {
			return fmt.Errorf("%w: %w", amqp.ErrReject, err)
		}
		return err
	}

	// Partial writes before a failure are harmless: re-running the import
	// converges on the same table contents.
	if w.cache != nil {
		w.cache.Invalidate()
	}

	logger.InfoContext(ctx, "Import job completed",
		"rows_written", res.RowsWritten,
		"rows_skipped", res.RowsSkipped,
		applog.FieldDuration, time.Since(started).Milliseconds())
	return nil
}

// permanent reports failures that will recur on redelivery.
func permanent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, deprivation.ErrTableMissing) ||
		errors.Is(err, deprivation.ErrNoValidRows) ||
		errors.Is(err, deprivation.ErrLineTooLong)
}
