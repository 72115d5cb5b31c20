package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"careanalytics/internal/backend"
	"careanalytics/internal/config"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
)

func main() {
	os.Exit(run())
}

// run performs the import and returns the process exit code, so deferred
// cleanup runs before exit.
func run() int {
	_ = godotenv.Load()

	cfg := config.Load()
	file := flag.String("file", "", "path to the postcode deprivation CSV (postcode,incomeDecile,healthDecile)")
	createTable := flag.Bool("create-table", cfg.LoaderCreateTable, "create the lookup table when it does not exist")
	flag.Parse()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentLoader,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: deprivation-import -file <path.csv> [-create-table]")
		return 2
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		return 1
	}
	if backend.Type(cfg.DataBackend) == backend.Memory {
		logger.Warn("Importing into the memory backend; records are discarded on exit")
	}

	store, err := backend.Open(cfg, logger.WithComponent(applog.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err)
		return 1
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The operator names the file directly, so IMPORT_DIR does not apply.
	// A one-shot run has no scrape endpoint; counts are logged instead.
	loaderCfg := cfg.Loader()
	loaderCfg.CreateTable = *createTable
	loader := deprivation.NewLoader(store.Deprivation, loaderCfg, logger, nil)

	res, err := loader.LoadFile(ctx, *file)
	if err != nil {
		logger.Error("Deprivation import failed", "error", err, applog.FieldFile, *file,
			"rows_read", res.RowsRead,
			"rows_skipped", res.RowsSkipped,
			"rows_written", res.RowsWritten)
		return 1
	}

	count, err := store.Deprivation.Count(ctx)
	if err != nil {
		logger.Warn("Could not count deprivation records", "error", err)
	}
	logger.Info("Deprivation import finished",
		applog.FieldFile, *file,
		"rows_read", res.RowsRead,
		"rows_skipped", res.RowsSkipped,
		"rows_written", res.RowsWritten,
		"batches", res.Batches,
		"retries", res.Retries,
		"table_rows", count)
	return 0
}
