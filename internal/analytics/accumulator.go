package analytics

// accumulator buckets a metric by (year, month) within a window. Year values
// are always folded from the twelve month values with the same combine
// function, so year totals equal the sum of their months for every report
// shape built on it.
//
// combine may modify and return its first argument; it must not modify the
// second.
type accumulator[M any] struct {
	window  Window
	zero    func() M
	combine func(a, b M) M
	months  map[yearMonth]M
}

func newAccumulator[M any](w Window, zero func() M, combine func(a, b M) M) *accumulator[M] {
	return &accumulator[M]{
		window:  w,
		zero:    zero,
		combine: combine,
		months:  make(map[yearMonth]M),
	}
}

// add merges m into (year, month); values outside the window are dropped.
func (a *accumulator[M]) add(year, month int, m M) {
	if !a.window.Contains(year) || month < 1 || month > monthsPerYear {
		return
	}
	key := yearMonth{year: year, month: month}
	if cur, ok := a.months[key]; ok {
		a.months[key] = a.combine(cur, m)
		return
	}
	a.months[key] = a.combine(a.zero(), m)
}

func (a *accumulator[M]) month(year, month int) M {
	if m, ok := a.months[yearMonth{year: year, month: month}]; ok {
		return m
	}
	return a.zero()
}

// year folds months 1..12 of year.
func (a *accumulator[M]) year(year int) M {
	total := a.zero()
	for m := 1; m <= monthsPerYear; m++ {
		total = a.combine(total, a.month(year, m))
	}
	return total
}

// eachYear visits every year of the window in ascending order with its
// folded total and all twelve months, including empty ones.
func (a *accumulator[M]) eachYear(fn func(year int, total M, months [monthsPerYear]M)) {
	if a.window.Empty() {
		return
	}
	for y := a.window.StartYear; y <= a.window.EndYear; y++ {
		var months [monthsPerYear]M
		for m := 1; m <= monthsPerYear; m++ {
			months[m-1] = a.month(y, m)
		}
		fn(y, a.year(y), months)
	}
}
