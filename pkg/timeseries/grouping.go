// Package timeseries groups samples of the same window taken from successive
// outputs of a simulation and stacks each group into one array.
package timeseries

import (
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/selection"
)

// SameGroup reports whether two (selection, field) pairs belong to one group:
// the selections are equal ignoring their field lists and the fields match.
func SameGroup(a, b selection.Selection, fa, fb selection.Field) bool {
	return fa.ID() == fb.ID() && selection.Equal(a, b)
}

type groupKey struct {
	sel   selection.Selection
	field selection.Field
}

// Grouping collects samples by (selection, field). Keys are dense from 0 in
// first-seen order and samples keep their arrival order within a group.
//
// A Grouping is not safe for concurrent use.
type Grouping struct {
	keys   []groupKey
	groups [][]layer.Spatial
	flat   []layer.Spatial
}

// NewGrouping returns an empty grouping.
func NewGrouping() *Grouping {
	return &Grouping{}
}

// Lookup returns the key of an existing group.
func (g *Grouping) Lookup(sel selection.Selection, field selection.Field) (int, bool) {
	for i, k := range g.keys {
		if SameGroup(k.sel, sel, k.field, field) {
			return i, true
		}
	}
	return 0, false
}

// Key returns the key for (sel, field), creating an empty group if needed.
func (g *Grouping) Key(sel selection.Selection, field selection.Field) int {
	if k, ok := g.Lookup(sel, field); ok {
		return k
	}
	g.keys = append(g.keys, groupKey{sel: sel, field: field})
	g.groups = append(g.groups, nil)
	return len(g.keys) - 1
}

// Add appends sample to its group and returns the group key. When the
// sample's domain is not uniformly proportioned, a scale of 1/aspect ratio
// is written into its kwargs first.
func (g *Grouping) Add(sel selection.Selection, field selection.Field, sample layer.Spatial) int {
	if d := sample.Domain; d != nil && d.RequiresScale {
		sample.Kwargs = sample.Kwargs.Clone()
		scale := make([]float64, len(d.AspectRatio))
		for i, a := range d.AspectRatio {
			scale[i] = 1 / a
		}
		sample.Kwargs[layer.KeyScale] = scale
	}
	k := g.Key(sel, field)
	g.groups[k] = append(g.groups[k], sample)
	g.flat = append(g.flat, sample)
	return k
}

// Len returns the number of groups.
func (g *Grouping) Len() int { return len(g.keys) }

// GroupLen returns the number of samples under key.
func (g *Grouping) GroupLen(key int) int {
	if key < 0 || key >= len(g.groups) {
		return 0
	}
	return len(g.groups[key])
}

// Concatenate stacks the group under key along a new leading axis using the
// first sample's kwargs and type. A single-sample group is returned as is.
// ok is false for an unknown or empty group.
func (g *Grouping) Concatenate(key int) (l layer.Layer, ok bool, err error) {
	if key < 0 || key >= len(g.groups) || len(g.groups[key]) == 0 {
		return layer.Layer{}, false, nil
	}
	group := g.groups[key]
	if len(group) == 1 {
		return group[0].Layer, true, nil
	}
	arrays := make([]ndarray.Array, len(group))
	for i, s := range group {
		arrays[i] = s.Data
	}
	stacked, err := ndarray.Stack(arrays)
	if err != nil {
		return layer.Layer{}, false, err
	}
	first := group[0]
	return layer.Layer{Data: stacked, Kwargs: first.Kwargs.Clone(), Type: first.Type}, true, nil
}

// ConcatenateAll concatenates every group in ascending key order.
func (g *Grouping) ConcatenateAll() ([]layer.Layer, error) {
	out := make([]layer.Layer, 0, len(g.groups))
	for k := range g.groups {
		l, ok, err := g.Concatenate(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// Flat returns every added sample in arrival order.
func (g *Grouping) Flat() []layer.Spatial {
	return append([]layer.Spatial(nil), g.flat...)
}
