package analytics

import "careanalytics/internal/core"

// BuildReport assembles the Year→Month→Dimension→Service tree for commitments
// of one kind. All twelve months of every year in the window are emitted.
func BuildReport(kind core.CommitmentKind, commitments []core.Commitment, opts Options) core.Report {
	if !opts.Dimension.Valid() {
		opts.Dimension = core.DimensionLocality
	}
	agg := Aggregate(commitments, opts)
	w := opts.Window()

	report := core.Report{
		Kind:      kind,
		Dimension: opts.Dimension,
		StartYear: w.StartYear,
		EndYear:   w.EndYear,
		Years:     make([]core.YearReport, 0, w.Years()),
	}

	agg.acc.eachYear(func(year int, total hoursTally, months [monthsPerYear]hoursTally) {
		names := nodeNames(opts.Dimension, total)
		serviceNames := sortedKeys(total.services)

		yr := core.YearReport{
			Year:       year,
			TotalHours: total.total,
			Breakdown:  breakdownNodes(names, total, total),
			Services:   serviceList(serviceNames, total.services),
			Months:     make([]core.MonthReport, 0, monthsPerYear),
		}
		for i, m := range months {
			yr.Months = append(yr.Months, core.MonthReport{
				Month:      i + 1,
				TotalHours: m.total,
				Breakdown:  breakdownNodes(names, total, m),
				Services:   serviceList(serviceNames, m.services),
			})
		}
		report.Years = append(report.Years, yr)
	})

	return report
}
