package sheets

import (
	"fmt"

	"careanalytics/internal/core"
)

// AllServices labels the per-node total row in exported reports.
const AllServices = "All services"

// ReportHeader is the first row of an exported hours report.
var ReportHeader = []any{"Year", "Month", "Dimension", "Service", "Hours"}

// AllowanceHeader is the first row of an exported attendance allowance report.
var AllowanceHeader = []any{"Year", "Month", "Confirmed", "Confirmed high", "Requested high", "High requested high", "Time spent"}

// SheetName builds the target sheet title, e.g. "2024 requests by locality".
func SheetName(kind string, dim core.Dimension, startYear int) string {
	if dim == "" {
		return fmt.Sprintf("%d %s", startYear, kind)
	}
	return fmt.Sprintf("%d %s by %s", startYear, kind, dim)
}

// ReportRows flattens a report into one row per month, dimension value and
// service, followed by the node total. Hours are rounded to two decimals.
func ReportRows(r core.Report) [][]any {
	rows := [][]any{ReportHeader}
	for _, y := range r.Years {
		for _, m := range y.Months {
			for _, node := range m.Breakdown {
				for _, svc := range node.Services {
					rows = append(rows, []any{y.Year, m.Month, node.Name, svc.Name, hoursCell(svc.TotalHours)})
				}
				rows = append(rows, []any{y.Year, m.Month, node.Name, AllServices, hoursCell(node.TotalHours)})
			}
		}
	}
	return rows
}

// AllowanceRows flattens an attendance allowance report into one row per month.
func AllowanceRows(r core.AttendanceAllowanceReport) [][]any {
	rows := [][]any{AllowanceHeader}
	for _, y := range r.Years {
		for _, m := range y.Months {
			c := m.AllowanceCounts
			rows = append(rows, []any{y.Year, m.Month, c.Total, c.TotalHigh, c.TotalRequestedHigh, c.TotalHighRequestedHigh, hoursCell(c.TotalHours)})
		}
	}
	return rows
}

func hoursCell(h core.Hours) float64 {
	return h.Round(2).Float64()
}
