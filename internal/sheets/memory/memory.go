package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	ports "careanalytics/internal/sheets"
)

var _ ports.ReportExporter = (*Exporter)(nil)

// Exporter keeps exported sheets in memory.
type Exporter struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func New() *Exporter {
	return &Exporter{sheets: make(map[string][][]any)}
}

// ExportRows replaces the rows stored under sheet.
func (e *Exporter) ExportRows(_ context.Context, sheet string, rows [][]any) error {
	if strings.TrimSpace(sheet) == "" {
		return errors.New("empty sheet name")
	}
	copied := make([][]any, len(rows))
	for i, row := range rows {
		copied[i] = append([]any(nil), row...)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheets[sheet] = copied
	return nil
}

// Rows returns the rows last exported to sheet.
func (e *Exporter) Rows(sheet string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.sheets[sheet]
	return rows, ok
}

// Sheets lists exported sheet names in order.
func (e *Exporter) Sheets() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sheets))
	for name := range e.sheets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
