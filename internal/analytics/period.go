// Package analytics turns commitment and attendance allowance snapshots into
// hierarchical reports. Every function is a pure computation over its inputs.
package analytics

import "careanalytics/internal/core"

const monthsPerYear = 12

// Window is the inclusive range of report years.
type Window struct {
	StartYear int
	EndYear   int
}

// NewWindow spans startYear through the year of today.
func NewWindow(startYear int, today core.Date) Window {
	return Window{StartYear: startYear, EndYear: today.Year()}
}

// Empty reports whether the window holds no years.
func (w Window) Empty() bool {
	return w.StartYear > w.EndYear
}

// Years returns the number of years covered.
func (w Window) Years() int {
	if w.Empty() {
		return 0
	}
	return w.EndYear - w.StartYear + 1
}

// Contains reports whether year falls inside the window.
func (w Window) Contains(year int) bool {
	return !w.Empty() && year >= w.StartYear && year <= w.EndYear
}

type yearMonth struct {
	year  int
	month int
}

// daysInclusive counts calendar days from..to inclusive; zero when to < from.
func daysInclusive(from, to core.Date) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from.Time).Hours()/24) + 1
}

// OverlapDays is the inclusive day overlap of the commitment's active
// interval with the calendar month. An Open end is resolved to today.
func OverlapDays(c core.Commitment, year, month int, today core.Date) int {
	first := core.FirstOfMonth(year, month)
	last := core.LastOfMonth(year, month)

	from := first
	if c.StartDate.After(from) {
		from = c.StartDate
	}
	to := last
	if end := c.EndDate.Resolve(today); end.Before(to) {
		to = end
	}
	return daysInclusive(from, to)
}

// ActiveInMonth reports whether the commitment overlaps the calendar month:
// start ≤ last day and (Open or end ≥ first day).
func ActiveInMonth(c core.Commitment, year, month int) bool {
	if c.StartDate.After(core.LastOfMonth(year, month)) {
		return false
	}
	return !c.EndDate.EndedBefore(core.FirstOfMonth(year, month))
}

// MonthlyContribution returns the hours c contributes to (year, month):
// weekly hours pro-rated over the overlap days, plus one-off hours when the
// start date falls in that month.
func MonthlyContribution(c core.Commitment, year, month int, today core.Date) core.Hours {
	if !ActiveInMonth(c, year, month) {
		return core.ZeroHours()
	}
	h := c.WeeklyHours.ForDays(OverlapDays(c, year, month, today))
	if c.StartDate.InMonth(year, month) {
		h = h.Add(c.OneOffHours)
	}
	return h
}
