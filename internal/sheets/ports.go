package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// ReportExporter writes tabular report rows to a named sheet,
	// replacing whatever the sheet held before.
	ReportExporter interface {
		ExportRows(ctx context.Context, sheet string, rows [][]any) error
	}
)
