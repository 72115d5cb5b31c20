package core

import (
	"errors"
	"strings"
	"unicode"
)

// DeprivedDecileThreshold is the highest decile still counted as deprived.
// Deciles run from 1 (most deprived) to 10 (least deprived).
const DeprivedDecileThreshold = 2

const (
	MinDecile = 1
	MaxDecile = 10
)

const (
	CategoryIncomeDeprived DeprivationCategory = "Income-Deprived"
	CategoryHealthDeprived DeprivationCategory = "Health-Deprived"
	CategoryBoth           DeprivationCategory = "Both"
	CategoryNeither        DeprivationCategory = "Neither"
	CategoryUnmatched      DeprivationCategory = "Unmatched"
)

// DeprivationCategories lists every category in report order.
var DeprivationCategories = []DeprivationCategory{
	CategoryIncomeDeprived,
	CategoryHealthDeprived,
	CategoryBoth,
	CategoryNeither,
	CategoryUnmatched,
}

var (
	ErrEmptyPostcode  = errors.New("empty postcode")
	ErrDecileOutRange = errors.New("decile out of range 1-10")
)

type (
	DeprivationCategory string

	// DeprivationRecord is one row of the postcode lookup table.
	DeprivationRecord struct {
		Postcode     string
		IncomeDecile int
		HealthDecile int
	}

	// Classification is the result of a postcode lookup. Matched=false means
	// unknown, not "not deprived".
	Classification struct {
		Matched        bool
		IncomeDeprived bool
		HealthDeprived bool
	}
)

// NormalizePostcode strips all whitespace and uppercases.
func NormalizePostcode(postcode string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, postcode)
}

// IsDeprivedDecile applies DeprivedDecileThreshold.
func IsDeprivedDecile(decile int) bool {
	return decile >= MinDecile && decile <= DeprivedDecileThreshold
}

func validDecile(d int) bool {
	return d >= MinDecile && d <= MaxDecile
}

func (r DeprivationRecord) Validate() error {
	if r.Postcode == "" || r.Postcode != NormalizePostcode(r.Postcode) {
		return ErrEmptyPostcode
	}
	if !validDecile(r.IncomeDecile) || !validDecile(r.HealthDecile) {
		return ErrDecileOutRange
	}
	return nil
}

// IncomeDeprived reports whether the income decile is at or below the threshold.
func (r DeprivationRecord) IncomeDeprived() bool {
	return IsDeprivedDecile(r.IncomeDecile)
}

// HealthDeprived reports whether the health decile is at or below the threshold.
func (r DeprivationRecord) HealthDeprived() bool {
	return IsDeprivedDecile(r.HealthDecile)
}

// Classify derives the classification of a matched record.
func (r DeprivationRecord) Classify() Classification {
	return Classification{
		Matched:        true,
		IncomeDeprived: r.IncomeDeprived(),
		HealthDeprived: r.HealthDeprived(),
	}
}

// Unmatched is the classification of a postcode missing from the table.
func Unmatched() Classification {
	return Classification{}
}

// Category maps the flags onto the fixed reporting categories.
func (c Classification) Category() DeprivationCategory {
	switch {
	case !c.Matched:
		return CategoryUnmatched
	case c.IncomeDeprived && c.HealthDeprived:
		return CategoryBoth
	case c.IncomeDeprived:
		return CategoryIncomeDeprived
	case c.HealthDeprived:
		return CategoryHealthDeprived
	default:
		return CategoryNeither
	}
}

// NeedsVerification is true when the operator should be warned to check the postcode.
func (c Classification) NeedsVerification() bool {
	return !c.Matched
}
