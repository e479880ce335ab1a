package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

// edgeSets encloses the first and third pair inside the second.
var edgeSets = []struct {
	left, right units.Vector
	res         []int
}{
	{units.NewVector(units.Kilometer, 1, 1, 1), units.NewVector(units.Meter, 2000, 2000, 2000), []int{10, 20, 15}},
	{units.NewVector(units.Meter, 0, 0, 0), units.NewVector(units.Kilometer, 10, 10, 10), []int{8, 15, 17}},
	{units.NewVector(units.Kilometer, 5, 2, 3), units.NewVector(units.Kilometer, 10, 4, 6), []int{110, 111, 125}},
}

func newAccumulator(t *testing.T, unit units.Unit) *Accumulator {
	t.Helper()
	a, err := NewAccumulator(unit, nil)
	if err != nil {
		t.Fatalf("NewAccumulator() error: %v", err)
	}
	return a
}

func TestAccumulatorUpdateEdges(t *testing.T) {
	a := newAccumulator(t, units.Meter)
	for _, s := range edgeSets {
		left, right := s.left, s.right
		if err := a.UpdateEdges(&left, &right, true); err != nil {
			t.Fatalf("UpdateEdges() error: %v", err)
		}
	}
	le, _ := a.LeftEdge()
	re, _ := a.RightEdge()
	if diff := cmp.Diff([]float64{0, 0, 0}, le.Value); diff != "" {
		t.Errorf("LeftEdge mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10000, 10000, 10000}, re.Value); diff != "" {
		t.Errorf("RightEdge mismatch (-want +got):\n%s", diff)
	}
	c, err := a.Center()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{5000, 5000, 5000}, c.Value); diff != "" {
		t.Errorf("Center mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorOrderIndependent(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}
	var first AccumulatorState
	for k, order := range orders {
		a := newAccumulator(t, units.Kilometer)
		for _, i := range order {
			d := mustNew(t, edgeSets[i].left, edgeSets[i].right, edgeSets[i].res)
			if err := a.UpdateFromLayer(d, false); err != nil {
				t.Fatal(err)
			}
		}
		if err := a.Finalize(); err != nil {
			t.Fatal(err)
		}
		if k == 0 {
			first = a.State()
			continue
		}
		if diff := cmp.Diff(first, a.State(), approx); diff != "" {
			t.Errorf("order %v differs (-want +got):\n%s", order, diff)
		}
	}
}

func TestAccumulatorMinGridWidth(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	for _, s := range edgeSets {
		d := mustNew(t, s.left, s.right, s.res)
		if err := a.UpdateFromLayer(d, true); err != nil {
			t.Fatal(err)
		}
	}
	gw, err := a.GridWidth()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5.0 / 110, 2.0 / 111, 3.0 / 125}
	if diff := cmp.Diff(want, gw.Value, approx); diff != "" {
		t.Errorf("GridWidth mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorStaleCenter(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	left, right := units.NewVector(units.Kilometer, 0, 0), units.NewVector(units.Kilometer, 2, 2)
	if err := a.UpdateEdges(&left, &right, false); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Center(); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("Center() before Finalize error = %v, want %s", err, errors.ErrCodeInvalidState)
	}
	if err := a.Finalize(); err != nil {
		t.Fatal(err)
	}
	w, err := a.Width()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{2, 2}, w.Value); diff != "" {
		t.Errorf("Width mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorFinalizeEmpty(t *testing.T) {
	a := newAccumulator(t, "")
	if a.Unit() != DefaultUnit {
		t.Errorf("Unit() = %q, want %q", a.Unit(), DefaultUnit)
	}
	if err := a.Finalize(); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("Finalize() error = %v, want %s", err, errors.ErrCodeInvalidState)
	}
	left := units.NewVector(units.Kiloparsec, 0, 0)
	if err := a.UpdateEdges(&left, nil, false); err != nil {
		t.Fatal(err)
	}
	if err := a.Finalize(); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("Finalize() with only a left edge error = %v, want %s", err, errors.ErrCodeInvalidState)
	}
}

func TestAccumulatorShapeMismatch(t *testing.T) {
	a := newAccumulator(t, units.Kiloparsec)
	left := units.NewVector(units.Kiloparsec, 0, 0, 0)
	if err := a.UpdateEdges(&left, nil, false); err != nil {
		t.Fatal(err)
	}
	flat := units.NewVector(units.Kiloparsec, 0, 0)
	if err := a.UpdateEdges(nil, &flat, false); !errors.Is(err, errors.ErrCodeInvalidShape) {
		t.Errorf("UpdateEdges() error = %v, want %s", err, errors.ErrCodeInvalidShape)
	}
}

func TestSetWorkingUnit(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	d := mustNew(t, edgeSets[1].left, edgeSets[1].right, edgeSets[1].res)
	if err := a.UpdateFromLayer(d, true); err != nil {
		t.Fatal(err)
	}

	if err := a.SetWorkingUnit(units.CodeLength, nil); !errors.Is(err, errors.ErrCodeUnitContext) {
		t.Fatalf("SetWorkingUnit(code_length) error = %v, want %s", err, errors.ErrCodeUnitContext)
	}
	if a.Unit() != units.Kilometer {
		t.Fatalf("failed SetWorkingUnit changed unit to %q", a.Unit())
	}

	if err := a.SetWorkingUnit(units.Meter, nil); err != nil {
		t.Fatal(err)
	}
	re, _ := a.RightEdge()
	c, _ := a.Center()
	if diff := cmp.Diff([]float64{10000, 10000, 10000}, re.Value, approx); diff != "" {
		t.Errorf("RightEdge mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{5000, 5000, 5000}, c.Value, approx); diff != "" {
		t.Errorf("Center mismatch (-want +got):\n%s", diff)
	}

	ctx, _ := units.NewContext("sim", 5, units.Kilometer)
	if err := a.SetWorkingUnit(units.CodeLength, ctx); err != nil {
		t.Fatal(err)
	}
	re, _ = a.RightEdge()
	if diff := cmp.Diff([]float64{2, 2, 2}, re.Value, approx); diff != "" {
		t.Errorf("RightEdge in code_length mismatch (-want +got):\n%s", diff)
	}

	// the held context keeps serving code_length
	if err := a.SetWorkingUnit(units.CodeLength, nil); err != nil {
		t.Errorf("SetWorkingUnit(code_length) with held context error = %v", err)
	}
}

func TestAccumulatorBoundsPlacement(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	var domains []*Descriptor
	for _, s := range edgeSets {
		d := mustNew(t, s.left, s.right, s.res)
		domains = append(domains, d)
		if err := a.UpdateFromLayer(d, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Finalize(); err != nil {
		t.Fatal(err)
	}
	for i, d := range domains {
		scale, err := a.CalculateScale(d)
		if err != nil {
			t.Fatal(err)
		}
		above := false
		for j, s := range scale {
			if s < 1-1e-12 {
				t.Errorf("domain %d: scale[%d] = %v, want >= 1", i, j, s)
			}
			if s > 1+1e-12 {
				above = true
			}
		}
		if i != 2 && !above {
			t.Errorf("domain %d: scale %v, want some axis above 1", i, scale)
		}
	}

	tr, err := a.CalculateTranslation(domains[1])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0, 0, 0}, tr); diff != "" {
		t.Errorf("translate of enclosing domain mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorSceneCenter(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	var domains []*Descriptor
	for _, s := range edgeSets {
		d := mustNew(t, s.left, s.right, s.res)
		domains = append(domains, d)
		if err := a.UpdateFromLayer(d, true); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.SetSceneCenter(units.NewVector(units.Kilometer, 1000, 1000, 1000)); err != nil {
		t.Fatal(err)
	}
	for i, d := range domains {
		tr, err := a.CalculateTranslation(d)
		if err != nil {
			t.Fatal(err)
		}
		for j, v := range tr {
			if v >= 0 {
				t.Errorf("domain %d: translate[%d] = %v, want negative", i, j, v)
			}
		}
	}
}

func TestAccumulatorPlacementBeforeLayers(t *testing.T) {
	a := newAccumulator(t, units.Kilometer)
	d := mustNew(t, edgeSets[0].left, edgeSets[0].right, edgeSets[0].res)
	if _, err := a.CalculateScale(d); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("CalculateScale() error = %v, want %s", err, errors.ErrCodeInvalidState)
	}
	left, right := d.LeftEdge, d.RightEdge
	if err := a.UpdateEdges(&left, &right, true); err != nil {
		t.Fatal(err)
	}
	if _, err := a.CalculateTranslation(d); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("CalculateTranslation() without grid width error = %v, want %s", err, errors.ErrCodeInvalidState)
	}
}

func TestAccumulatorStateJSON(t *testing.T) {
	ctx, _ := units.NewContext("sim", 1, units.Kiloparsec)
	a, err := NewAccumulator(units.CodeLength, ctx)
	if err != nil {
		t.Fatal(err)
	}
	d := mustNew(t, units.NewVector(units.Kiloparsec, 0, 0), units.NewVector(units.Kiloparsec, 1, 1), []int{4})
	if err := a.UpdateFromLayer(d, true); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(a.State())
	if err != nil {
		t.Fatal(err)
	}
	var s AccumulatorState
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	restored, err := AccumulatorFromState(s)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.State(), restored.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}
