package deprivation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"careanalytics/internal/core"
)

const (
	csvFields = 3
	// MaxLineBytes bounds a single CSV line; real rows are a few dozen bytes.
	MaxLineBytes = 4 << 10
)

var (
	ErrFieldCount  = errors.New("expected postcode,incomeDecile,healthDecile")
	ErrBadDecile   = errors.New("decile is not a number")
	ErrLineTooLong = errors.New("csv line too long")
)

// RowError describes a skipped CSV row.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// parseRow turns one CSV record into a normalized deprivation record.
func parseRow(fields []string) (core.DeprivationRecord, error) {
	if len(fields) < csvFields {
		return core.DeprivationRecord{}, ErrFieldCount
	}
	postcode := core.NormalizePostcode(fields[0])
	if postcode == "" {
		return core.DeprivationRecord{}, core.ErrEmptyPostcode
	}
	income, err := parseDecile(fields[1])
	if err != nil {
		return core.DeprivationRecord{}, fmt.Errorf("income decile: %w", err)
	}
	health, err := parseDecile(fields[2])
	if err != nil {
		return core.DeprivationRecord{}, fmt.Errorf("health decile: %w", err)
	}
	rec := core.DeprivationRecord{Postcode: postcode, IncomeDecile: income, HealthDecile: health}
	if err := rec.Validate(); err != nil {
		return core.DeprivationRecord{}, err
	}
	return rec, nil
}

func parseDecile(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrBadDecile
	}
	return n, nil
}

// rowReader yields valid records from a deprivation CSV, skipping the header
// and reporting bad rows through onSkip.
type rowReader struct {
	r      *csv.Reader
	line   int
	onSkip func(*RowError)
}

// lineLimitReader fails once a line grows past max bytes, so input without
// newlines cannot be buffered without bound.
type lineLimitReader struct {
	r    io.Reader
	max  int
	line int
}

func (l *lineLimitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	for i, b := range p[:n] {
		if b == '\n' {
			l.line = 0
			continue
		}
		l.line++
		if l.line > l.max {
			return i, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, l.max)
		}
	}
	return n, err
}

func newRowReader(in io.Reader, onSkip func(*RowError)) (*rowReader, error) {
	r := csv.NewReader(&lineLimitReader{r: in, max: MaxLineBytes})
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	rr := &rowReader{r: r, onSkip: onSkip}
	if _, err := r.Read(); err != nil {
		var parseErr *csv.ParseError
		switch {
		case errors.Is(err, io.EOF):
			return rr, nil
		case errors.As(err, &parseErr):
			// header content is ignored either way
		default:
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	rr.line = 1
	return rr, nil
}

// next returns the next valid record. ok is false at end of input.
func (rr *rowReader) next() (rec core.DeprivationRecord, ok bool, err error) {
	for {
		fields, err := rr.r.Read()
		if errors.Is(err, io.EOF) {
			return core.DeprivationRecord{}, false, nil
		}
		rr.line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rr.skip(err)
				continue
			}
			return core.DeprivationRecord{}, false, fmt.Errorf("read csv: %w", err)
		}
		rec, err := parseRow(fields)
		if err != nil {
			rr.skip(err)
			continue
		}
		return rec, true, nil
	}
}

func (rr *rowReader) skip(err error) {
	if rr.onSkip != nil {
		rr.onSkip(&RowError{Line: rr.line, Err: err})
	}
}
