package analytics

import (
	"sort"

	"careanalytics/internal/core"
)

// hoursTally is the metric carried by the hours accumulator. The dimension
// total counts each commitment once; each service bucket receives the full
// hours of every commitment offering that service.
type hoursTally struct {
	total    core.Hours
	dims     map[string]dimTally
	services map[string]core.Hours
}

type dimTally struct {
	total    core.Hours
	services map[string]core.Hours
}

func newHoursTally() hoursTally {
	return hoursTally{
		total:    core.ZeroHours(),
		dims:     make(map[string]dimTally),
		services: make(map[string]core.Hours),
	}
}

// singleTally is one commitment's contribution under dimension value dim.
func singleTally(dim string, services []string, h core.Hours) hoursTally {
	t := newHoursTally()
	t.total = h
	d := dimTally{total: h, services: make(map[string]core.Hours, len(services))}
	for _, s := range services {
		d.services[s] = h
		t.services[s] = h
	}
	t.dims[dim] = d
	return t
}

// combineTallies merges b into a and returns a. b is not modified.
func combineTallies(a, b hoursTally) hoursTally {
	a.total = a.total.Add(b.total)
	for name, d := range b.dims {
		cur, ok := a.dims[name]
		if !ok {
			cur = dimTally{total: core.ZeroHours(), services: make(map[string]core.Hours)}
		}
		cur.total = cur.total.Add(d.total)
		mergeHours(cur.services, d.services)
		a.dims[name] = cur
	}
	mergeHours(a.services, b.services)
	return a
}

func mergeHours(dst, src map[string]core.Hours) {
	for k, v := range src {
		dst[k] = dst[k].Add(v)
	}
}

// nodeNames decides which breakdown nodes a year shows. Deprivation always
// shows the full fixed category set in order; localities are those seen in
// the year, sorted.
func nodeNames(dim core.Dimension, t hoursTally) []string {
	if dim == core.DimensionDeprivation {
		names := make([]string, len(core.DeprivationCategories))
		for i, c := range core.DeprivationCategories {
			names[i] = string(c)
		}
		return names
	}
	return sortedKeys(t.dims)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// breakdownNodes renders t using the node and service layout of layout, so
// that every month of a year has the same shape as the year itself.
func breakdownNodes(names []string, layout, t hoursTally) []core.BreakdownNode {
	nodes := make([]core.BreakdownNode, 0, len(names))
	for _, name := range names {
		d := t.dims[name]
		node := core.BreakdownNode{
			Name:       name,
			TotalHours: d.total,
			Services:   serviceList(sortedKeys(layout.dims[name].services), d.services),
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func serviceList(names []string, hours map[string]core.Hours) []core.ServiceHours {
	out := make([]core.ServiceHours, 0, len(names))
	for _, name := range names {
		out = append(out, core.ServiceHours{Name: name, TotalHours: hours[name]})
	}
	return out
}
