package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Request CommitmentKind = "request"
	Package CommitmentKind = "package"
)

// UnknownLocality names the breakdown bucket for commitments with a blank locality.
const UnknownLocality = "Unknown"

type (
	CommitmentKind string

	Date struct {
		time.Time
	}

	// EndDate is either a concrete date or Open (ongoing, no fixed end).
	EndDate struct {
		date Date
		open bool
	}

	// Commitment is a Request (demand side) or Package (delivery side) of
	// weekly and one-off care hours.
	Commitment struct {
		ID          string
		Kind        CommitmentKind
		SubjectID   string
		CarerID     string // empty when no carer is assigned
		StartDate   Date
		EndDate     EndDate
		WeeklyHours Hours
		OneOffHours Hours // applied once, in the start-date month
		Services    []string
		Locality    string
		Postcode    string
		InfoOnly    bool // request raised only for information and advice
		Deprivation Classification
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidHours      = errors.New("invalid hours")
	ErrEmptyServices     = errors.New("commitment has no services")
	ErrEndBeforeStart    = errors.New("end date before start date")
	ErrInvalidKind       = errors.New("invalid commitment kind")
	ErrEmptyCommitmentID = errors.New("empty commitment id")
	ErrEmptyServiceName  = errors.New("empty service name")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrInvalidDateFormat = errors.New("invalid date format (want YYYY-MM-DD)")
)

// DateLayout is the storage and wire layout for calendar dates.
const DateLayout = "2006-01-02"

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// InMonth reports whether d falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstOfMonth returns the first day of the month.
func FirstOfMonth(year, month int) Date {
	return NewDate(year, month, 1)
}

// LastOfMonth returns the last day of the month.
func LastOfMonth(year, month int) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// OpenEnd is the end date of an ongoing commitment.
func OpenEnd() EndDate {
	return EndDate{open: true}
}

// EndsOn is a concrete end date.
func EndsOn(d Date) EndDate {
	return EndDate{date: d}
}

// IsOpen reports whether the commitment has no fixed end.
func (e EndDate) IsOpen() bool {
	return e.open
}

// Date returns the concrete end date; ok is false for Open.
func (e EndDate) Date() (Date, bool) {
	if e.open {
		return Date{}, false
	}
	return e.date, true
}

// Resolve returns the concrete end date, or asOf when the end is Open.
func (e EndDate) Resolve(asOf Date) Date {
	if e.open {
		return asOf
	}
	return e.date
}

// EndedBefore reports whether a concrete end date lies strictly before d.
func (e EndDate) EndedBefore(d Date) bool {
	return !e.open && e.date.Before(d)
}

func (e EndDate) String() string {
	if e.open {
		return "open"
	}
	return e.date.String()
}

func (k CommitmentKind) Validate() error {
	switch k {
	case Request, Package:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

// ParseKind accepts the singular and plural spellings used by the API.
func ParseKind(s string) (CommitmentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "request", "requests":
		return Request, nil
	case "package", "packages":
		return Package, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (c Commitment) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyCommitmentID
	}
	if err := c.Kind.Validate(); err != nil {
		return err
	}
	if err := c.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if end, ok := c.EndDate.Date(); ok {
		if err := end.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if end.Before(c.StartDate) {
			return ErrEndBeforeStart
		}
	}
	if c.WeeklyHours.IsNegative() || c.OneOffHours.IsNegative() {
		return ErrInvalidHours
	}
	if len(c.Services) == 0 {
		return ErrEmptyServices
	}
	for _, s := range c.Services {
		if strings.TrimSpace(s) == "" {
			return ErrEmptyServiceName
		}
	}
	return nil
}

// ActiveOn reports whether the commitment has started and not yet ended on d.
func (c Commitment) ActiveOn(d Date) bool {
	return !c.StartDate.After(d) && !c.EndDate.EndedBefore(d)
}

// LocalityName returns the locality, or UnknownLocality when blank.
func (c Commitment) LocalityName() string {
	if l := strings.TrimSpace(c.Locality); l != "" {
		return l
	}
	return UnknownLocality
}

// UniqueServices returns the service tags with duplicates removed, in input order.
func (c Commitment) UniqueServices() []string {
	seen := make(map[string]struct{}, len(c.Services))
	out := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
