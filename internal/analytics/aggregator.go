package analytics

import "careanalytics/internal/core"

// Options parameterize an hours aggregation.
type Options struct {
	StartYear int
	Today     core.Date
	Dimension core.Dimension
	// Include, when set, keeps only commitments for which it returns true.
	Include func(core.Commitment) bool
}

// InfoOnly keeps requests raised solely for information and advice.
func InfoOnly(c core.Commitment) bool {
	return c.InfoOnly
}

// Window returns the report window implied by the options.
func (o Options) Window() Window {
	return NewWindow(o.StartYear, o.Today)
}

// dimensionValue returns the breakdown bucket a commitment is reported under.
func dimensionValue(dim core.Dimension, c core.Commitment) string {
	if dim == core.DimensionDeprivation {
		return string(c.Deprivation.Category())
	}
	return c.LocalityName()
}

// Aggregation holds per (year, month) hours grouped by dimension value and
// by service tag.
type Aggregation struct {
	dimension core.Dimension
	acc       *accumulator[hoursTally]
}

// Aggregate computes every in-window monthly contribution of commitments.
// Commitments outside the window, or an empty window, contribute nothing.
func Aggregate(commitments []core.Commitment, opts Options) *Aggregation {
	w := opts.Window()
	acc := newAccumulator(w, newHoursTally, combineTallies)
	if !w.Empty() {
		for _, c := range commitments {
			if opts.Include != nil && !opts.Include(c) {
				continue
			}
			addCommitment(acc, c, opts)
		}
	}
	return &Aggregation{dimension: opts.Dimension, acc: acc}
}

func addCommitment(acc *accumulator[hoursTally], c core.Commitment, opts Options) {
	dim := dimensionValue(opts.Dimension, c)
	services := c.UniqueServices()
	for y := max(opts.StartYear, c.StartDate.Year()); y <= opts.Today.Year(); y++ {
		for m := 1; m <= monthsPerYear; m++ {
			if !ActiveInMonth(c, y, m) {
				continue
			}
			acc.add(y, m, singleTally(dim, services, MonthlyContribution(c, y, m, opts.Today)))
		}
	}
}

// MonthTotal returns the total hours for (year, month), each commitment counted once.
func (a *Aggregation) MonthTotal(year, month int) core.Hours {
	return a.acc.month(year, month).total
}

// DimensionTotal returns the hours of one dimension value in (year, month).
func (a *Aggregation) DimensionTotal(year, month int, name string) core.Hours {
	return a.acc.month(year, month).dims[name].total
}

// ServiceTotal returns the hours of one service tag in (year, month).
func (a *Aggregation) ServiceTotal(year, month int, service string) core.Hours {
	return a.acc.month(year, month).services[service]
}
