package analytics

import "careanalytics/internal/core"

// Snapshot computes the live cross-section of commitments active on
// opts.Today, shaped like a single year node. Hours are the current weekly
// hours, summed directly over the active set. opts.StartYear is ignored.
func Snapshot(kind core.CommitmentKind, commitments []core.Commitment, opts Options) core.Snapshot {
	if !opts.Dimension.Valid() {
		opts.Dimension = core.DimensionLocality
	}

	total := newHoursTally()
	active := 0
	for _, c := range commitments {
		if opts.Include != nil && !opts.Include(c) {
			continue
		}
		if !c.ActiveOn(opts.Today) {
			continue
		}
		active++
		total = combineTallies(total, singleTally(dimensionValue(opts.Dimension, c), c.UniqueServices(), c.WeeklyHours))
	}

	return core.Snapshot{
		Kind:        kind,
		Dimension:   opts.Dimension,
		AsOf:        opts.Today,
		Active:      active,
		WeeklyHours: total.total,
		Breakdown:   breakdownNodes(nodeNames(opts.Dimension, total), total, total),
		Services:    serviceList(sortedKeys(total.services), total.services),
	}
}
