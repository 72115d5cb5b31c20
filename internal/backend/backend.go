package backend

import (
	"context"
	"fmt"

	"careanalytics/internal/config"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
	"careanalytics/internal/sheets"
	gsheet "careanalytics/internal/sheets/google"
	"careanalytics/internal/storage"
	"careanalytics/internal/storage/memory"
)

// Type names a data backend
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

// IsValid checks if the backend type is valid
func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

func (t Type) String() string {
	return string(t)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend bundles the stores one data backend provides.
type Backend struct {
	Type        Type
	Commitments storage.CommitmentReader
	Clients     storage.ClientReader
	Deprivation deprivation.Table
	Pinger      storage.Pinger
	Cleanup     CleanupFunc
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Open creates the backend selected by DATA_BACKEND.
func Open(cfg *config.Config, logger *applog.Logger) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	switch t := Type(cfg.DataBackend); t {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.DeprivationTable)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "deprivation_table", cfg.DeprivationTable)
		return &Backend{
			Type:        t,
			Commitments: repo,
			Clients:     repo,
			Deprivation: repo.Deprivation(),
			Pinger:      repo,
			Cleanup:     repo.Close,
		}, nil

	case Memory:
		store := memory.New()
		logger.Info("Initialized memory backend")
		return &Backend{
			Type:        t,
			Commitments: store,
			Clients:     store,
			Deprivation: store,
			Pinger:      store,
		}, nil

	default:
		return nil, fmt.Errorf("invalid backend type: %q", cfg.DataBackend)
	}
}

// Exporter returns the Google Sheets exporter, or nil when no spreadsheet is
// configured.
func Exporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.ReportExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		if logger != nil {
			logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
		}
		return nil, nil
	}
	cli, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, gsheet.Credentials{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if logger != nil {
		logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	return cli, nil
}
