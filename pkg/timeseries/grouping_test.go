package timeseries

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/units"
)

var (
	density     = selection.Field{Type: "gas", Name: "density"}
	temperature = selection.Field{Type: "gas", Name: "temperature"}
)

func region(res int) selection.Region {
	le := units.NewVector(units.Kiloparsec, 0, 0, 0)
	re := units.NewVector(units.Kiloparsec, 1, 1, 1)
	return selection.Region{
		Fields:     []selection.Field{density, temperature},
		LeftEdge:   &le,
		RightEdge:  &re,
		Resolution: []int{res, res, res},
	}
}

func sampleOf(t *testing.T, r selection.Region, fill float64) layer.Spatial {
	t.Helper()
	d, err := domain.New(*r.LeftEdge, *r.RightEdge, r.Resolution)
	if err != nil {
		t.Fatal(err)
	}
	return layer.NewSpatial(ndarray.Full(fill, r.Resolution...), d, density.ID())
}

func TestGroupingIdenticalSelections(t *testing.T) {
	g := NewGrouping()
	r := region(10)
	for i := 0; i < 3; i++ {
		if k := g.Add(r, density, sampleOf(t, r, float64(i))); k != 0 {
			t.Fatalf("Add() = %d, want 0", k)
		}
	}
	if g.Len() != 1 || g.GroupLen(0) != 3 {
		t.Fatalf("Len() = %d, GroupLen(0) = %d", g.Len(), g.GroupLen(0))
	}

	l, ok, err := g.Concatenate(0)
	if err != nil || !ok {
		t.Fatalf("Concatenate() = %v, %v", ok, err)
	}
	if diff := cmp.Diff([]int{3, 10, 10, 10}, l.Data.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	d, _ := l.Data.Compute()
	if d.At(2, 0, 0, 0) != 2 {
		t.Errorf("arrival order not preserved")
	}
	if l.Kwargs.Name() != density.ID() || l.Type != layer.TypeImage {
		t.Errorf("kwargs/type not taken from first sample: %v %v", l.Kwargs, l.Type)
	}
}

func TestGroupingSeparatesGroups(t *testing.T) {
	g := NewGrouping()
	r := region(10)
	k0 := g.Add(r, density, sampleOf(t, r, 0))
	k1 := g.Add(r, temperature, sampleOf(t, r, 0))
	r2 := region(12)
	k2 := g.Add(r2, density, sampleOf(t, r2, 0))
	k3 := g.Add(r, density, sampleOf(t, r, 1))

	if k0 != 0 || k1 != 1 || k2 != 2 || k3 != 0 {
		t.Errorf("keys = %d %d %d %d, want 0 1 2 0", k0, k1, k2, k3)
	}
	all, err := g.ConcatenateAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len(ConcatenateAll()) = %d, want 3", len(all))
	}
	if got := all[0].Data.Shape(); got[0] != 2 {
		t.Errorf("group 0 shape = %v, want leading 2", got)
	}
	if got := all[2].Data.Shape(); len(got) != 3 {
		t.Errorf("single-sample group was stacked: %v", got)
	}
	if len(g.Flat()) != 4 {
		t.Errorf("len(Flat()) = %d, want 4", len(g.Flat()))
	}
}

func TestGroupingFieldListIgnored(t *testing.T) {
	g := NewGrouping()
	a := region(10)
	b := region(10)
	b.Fields = []selection.Field{density}
	g.Add(a, density, sampleOf(t, a, 0))
	if k := g.Add(b, density, sampleOf(t, b, 0)); k != 0 {
		t.Errorf("Add() = %d, want 0", k)
	}
}

func TestGroupingAspectCorrection(t *testing.T) {
	le := units.NewVector(units.Kiloparsec, 0, 0)
	re := units.NewVector(units.Kiloparsec, 1, 4)
	d, err := domain.New(le, re, []int{8})
	if err != nil {
		t.Fatal(err)
	}
	s := layer.NewSpatial(ndarray.Zeros(8, 8), d, "slice")
	sl := selection.Slice{Fields: []selection.Field{density}, Normal: "z"}

	g := NewGrouping()
	g.Add(sl, density, s)
	if _, ok := s.Kwargs.Scale(); ok {
		t.Error("Add modified the caller's kwargs")
	}
	scale, ok := g.Flat()[0].Kwargs.Scale()
	if !ok {
		t.Fatal("no scale written for stretched domain")
	}
	if diff := cmp.Diff([]float64{1, 0.25}, scale); diff != "" {
		t.Errorf("scale mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupingLazyStack(t *testing.T) {
	g := NewGrouping()
	r := region(4)
	for i := 0; i < 2; i++ {
		s := sampleOf(t, r, 0)
		s.Data = ndarray.Delayed([]int{4, 4, 4}, func() (*ndarray.Dense, error) {
			return ndarray.Zeros(4, 4, 4), nil
		})
		g.Add(r, density, s)
	}
	l, _, err := g.Concatenate(0)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Data.Lazy() {
		t.Error("stack of delayed arrays is not lazy")
	}
}

func TestConcatenateEmpty(t *testing.T) {
	g := NewGrouping()
	if _, ok, err := g.Concatenate(0); ok || err != nil {
		t.Errorf("Concatenate() on empty grouping = %v, %v", ok, err)
	}
	k := g.Key(region(10), density)
	if _, ok, _ := g.Concatenate(k); ok {
		t.Error("Concatenate() of a group with no samples reported ok")
	}
	all, err := g.ConcatenateAll()
	if err != nil || len(all) != 0 {
		t.Errorf("ConcatenateAll() = %v, %v", all, err)
	}
}

func TestSameGroup(t *testing.T) {
	r := region(10)
	sl := selection.Slice{Normal: "x"}
	if !SameGroup(r, region(10), density, density) {
		t.Error("identical pairs not grouped")
	}
	if SameGroup(r, r, density, temperature) {
		t.Error("different fields grouped")
	}
	if SameGroup(r, sl, density, density) {
		t.Error("region grouped with slice")
	}
}
