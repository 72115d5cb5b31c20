package deprivation

import (
	"errors"
	"strings"
	"testing"

	"careanalytics/internal/core"
)

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		want    core.DeprivationRecord
		wantErr error
	}{
		{"valid", []string{"ab1 2cd", "1", "10"}, core.DeprivationRecord{Postcode: "AB12CD", IncomeDecile: 1, HealthDecile: 10}, nil},
		{"padded deciles", []string{" EF3 4GH ", " 2 ", "3"}, core.DeprivationRecord{Postcode: "EF34GH", IncomeDecile: 2, HealthDecile: 3}, nil},
		{"extra columns ignored", []string{"X1 1XX", "5", "5", "extra"}, core.DeprivationRecord{Postcode: "X11XX", IncomeDecile: 5, HealthDecile: 5}, nil},
		{"too few fields", []string{"AB1 2CD", "1"}, core.DeprivationRecord{}, ErrFieldCount},
		{"blank postcode", []string{"  ", "1", "1"}, core.DeprivationRecord{}, core.ErrEmptyPostcode},
		{"non numeric", []string{"AB1 2CD", "one", "1"}, core.DeprivationRecord{}, ErrBadDecile},
		{"out of range", []string{"AB1 2CD", "0", "11"}, core.DeprivationRecord{}, core.ErrDecileOutRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRow(tt.fields)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseRow() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRow() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRowReader_SkipsBadRows(t *testing.T) {
	in := strings.Join([]string{
		"postcode,income,health",
		"AB1 2CD,1,5",
		"broken",
		"EF3 4GH,x,2",
		"GH5 6IJ,9,2",
	}, "\n")

	var skipped []*RowError
	rr, err := newRowReader(strings.NewReader(in), func(e *RowError) { skipped = append(skipped, e) })
	if err != nil {
		t.Fatalf("newRowReader: %v", err)
	}

	var got []string
	for {
		rec, ok, err := rr.next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, rec.Postcode)
	}

	if strings.Join(got, ",") != "AB12CD,GH56IJ" {
		t.Errorf("records = %v", got)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %d, want 2", len(skipped))
	}
	if skipped[0].Line != 3 || !errors.Is(skipped[0], ErrFieldCount) {
		t.Errorf("first skip = %v", skipped[0])
	}
	if skipped[1].Line != 4 || !errors.Is(skipped[1], ErrBadDecile) {
		t.Errorf("second skip = %v", skipped[1])
	}
}

func TestRowReader_EmptyInput(t *testing.T) {
	rr, err := newRowReader(strings.NewReader(""), nil)
	if err != nil {
		t.Fatalf("newRowReader: %v", err)
	}
	if _, ok, err := rr.next(); ok || err != nil {
		t.Fatalf("next() = ok %v, err %v; want end of input", ok, err)
	}
}

func TestRowReader_LineTooLong(t *testing.T) {
	long := "AB1 2CD," + strings.Repeat("1", MaxLineBytes) + ",1\n"
	rr, err := newRowReader(strings.NewReader("postcode,income,health\nEF3 4GH,1,2\n"+long), nil)
	if err != nil {
		t.Fatalf("newRowReader: %v", err)
	}
	if _, ok, err := rr.next(); !ok || err != nil {
		t.Fatalf("first row: ok %v, err %v", ok, err)
	}
	if _, _, err := rr.next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("next() error = %v, want ErrLineTooLong", err)
	}
}
