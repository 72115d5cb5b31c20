package analytics

import "careanalytics/internal/core"

func zeroAllowance() core.AllowanceCounts {
	return core.AllowanceCounts{TotalHours: core.ZeroHours()}
}

func combineAllowance(a, b core.AllowanceCounts) core.AllowanceCounts {
	a.Total += b.Total
	a.TotalHigh += b.TotalHigh
	a.TotalRequestedHigh += b.TotalRequestedHigh
	a.TotalHighRequestedHigh += b.TotalHighRequestedHigh
	a.TotalHours = a.TotalHours.Add(b.TotalHours)
	return a
}

// allowanceEvent is the contribution of one confirmation.
func allowanceEvent(s core.AttendanceAllowanceState) core.AllowanceCounts {
	c := core.AllowanceCounts{Total: 1, TotalHours: s.TimeSpentHours}
	if s.ConfirmedHigh() {
		c.TotalHigh = 1
	}
	if s.RequestedHigh() {
		c.TotalRequestedHigh = 1
	}
	if s.ConfirmedHigh() && s.RequestedHigh() {
		c.TotalHighRequestedHigh = 1
	}
	return c
}

func countConfirmations(states []core.AttendanceAllowanceState, w Window) *accumulator[core.AllowanceCounts] {
	acc := newAccumulator(w, zeroAllowance, combineAllowance)
	for _, s := range states {
		if !s.Confirmed() {
			continue
		}
		acc.add(s.ConfirmationDate.Year(), s.ConfirmationDate.Month(), allowanceEvent(s))
	}
	return acc
}

// AnalyzeAttendanceAllowance counts confirmation events per month from
// startYear through the year of today. Each client contributes one event, in
// the month of its confirmation date.
func AnalyzeAttendanceAllowance(states []core.AttendanceAllowanceState, startYear int, today core.Date) core.AttendanceAllowanceReport {
	w := NewWindow(startYear, today)
	acc := countConfirmations(states, w)

	report := core.AttendanceAllowanceReport{
		StartYear: w.StartYear,
		EndYear:   w.EndYear,
		Years:     make([]core.AllowanceYear, 0, w.Years()),
	}
	acc.eachYear(func(year int, total core.AllowanceCounts, months [monthsPerYear]core.AllowanceCounts) {
		yr := core.AllowanceYear{
			Year:            year,
			AllowanceCounts: total,
			Months:          make([]core.AllowanceMonth, 0, monthsPerYear),
		}
		for i, m := range months {
			yr.Months = append(yr.Months, core.AllowanceMonth{Month: i + 1, AllowanceCounts: m})
		}
		report.Years = append(report.Years, yr)
	})
	return report
}

// InReceipt counts clients currently at a confirmed level, whenever confirmed.
func InReceipt(states []core.AttendanceAllowanceState) int {
	n := 0
	for _, s := range states {
		if s.InReceipt() {
			n++
		}
	}
	return n
}

// ConfirmedInMonth counts confirmations dated in the calendar month of today.
func ConfirmedInMonth(states []core.AttendanceAllowanceState, today core.Date) int {
	w := Window{StartYear: today.Year(), EndYear: today.Year()}
	return countConfirmations(states, w).month(today.Year(), today.Month()).Total
}
