package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

var approx = cmpopts.EquateApprox(1e-12, 1e-12)

func mustNew(t *testing.T, left, right units.Vector, res []int, opts ...Option) *Descriptor {
	t.Helper()
	d, err := New(left, right, res, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d
}

func TestNewDerivedQuantities(t *testing.T) {
	tests := []struct {
		name       string
		left       units.Vector
		right      units.Vector
		res        []int
		wantCenter []float64
		wantWidth  []float64
		wantGW     []float64
		wantAspect []float64
		wantScale  bool
	}{
		{
			name:       "unit cube",
			left:       units.NewVector(units.Kiloparsec, 0, 0, 0),
			right:      units.NewVector(units.Kiloparsec, 1, 1, 1),
			res:        []int{10},
			wantCenter: []float64{0.5, 0.5, 0.5},
			wantWidth:  []float64{1, 1, 1},
			wantGW:     []float64{0.1, 0.1, 0.1},
			wantAspect: []float64{1, 1, 1},
		},
		{
			name:       "mixed units normalized to left",
			left:       units.NewVector(units.Kilometer, 1, 1, 1),
			right:      units.NewVector(units.Meter, 2000, 2000, 2000),
			res:        []int{10, 20, 15},
			wantCenter: []float64{1.5, 1.5, 1.5},
			wantWidth:  []float64{1, 1, 1},
			wantGW:     []float64{0.1, 0.05, 1.0 / 15},
			wantAspect: []float64{1, 1, 1},
		},
		{
			name:       "stretched 2d",
			left:       units.NewVector(units.Kiloparsec, 0, 0),
			right:      units.NewVector(units.Kiloparsec, 2, 4),
			res:        []int{4, 4},
			wantCenter: []float64{1, 2},
			wantWidth:  []float64{2, 4},
			wantGW:     []float64{0.5, 1},
			wantAspect: []float64{1, 2},
			wantScale:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustNew(t, tt.left, tt.right, tt.res)
			if d.RightEdge.Unit != tt.left.Unit {
				t.Errorf("RightEdge.Unit = %q, want %q", d.RightEdge.Unit, tt.left.Unit)
			}
			if diff := cmp.Diff(tt.wantCenter, d.Center.Value, approx); diff != "" {
				t.Errorf("Center mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantWidth, d.Width.Value, approx); diff != "" {
				t.Errorf("Width mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantGW, d.GridWidth.Value, approx); diff != "" {
				t.Errorf("GridWidth mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantAspect, d.AspectRatio, approx); diff != "" {
				t.Errorf("AspectRatio mismatch (-want +got):\n%s", diff)
			}
			if d.RequiresScale != tt.wantScale {
				t.Errorf("RequiresScale = %v, want %v", d.RequiresScale, tt.wantScale)
			}
		})
	}
}

func TestNewCenterWidthExact(t *testing.T) {
	left := units.NewVector(units.Meter, 0.3, -7, 1e6)
	right := units.NewVector(units.Meter, 1.7, 5, 3e6)
	d := mustNew(t, left, right, []int{1})
	for i := range left.Value {
		if got, want := d.Center.Value[i], (left.Value[i]+right.Value[i])/2; got != want {
			t.Errorf("Center[%d] = %v, want %v", i, got, want)
		}
		if got, want := d.Width.Value[i], right.Value[i]-left.Value[i]; got != want {
			t.Errorf("Width[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestNewShapeErrors(t *testing.T) {
	km := units.Kilometer
	tests := []struct {
		name  string
		left  units.Vector
		right units.Vector
		res   []int
		opts  []Option
	}{
		{"edge length mismatch", units.NewVector(km, 0, 0, 0), units.NewVector(km, 1, 1), []int{10}, nil},
		{"resolution length 2 for 3-D", units.NewVector(km, 0, 0, 0), units.NewVector(km, 1, 1, 1), []int{10, 10}, nil},
		{"one dimension", units.NewVector(km, 0), units.NewVector(km, 1), []int{10}, nil},
		{"zero resolution", units.NewVector(km, 0, 0), units.NewVector(km, 1, 1), []int{0}, nil},
		{"axis position out of range", units.NewVector(km, 0, 0), units.NewVector(km, 1, 1), []int{4}, []Option{WithNewAxis(3, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.left, tt.right, tt.res, tt.opts...)
			if !errors.Is(err, errors.ErrCodeInvalidShape) {
				t.Errorf("New() error = %v, want %s", err, errors.ErrCodeInvalidShape)
			}
		})
	}
}

func TestNewBroadcastsResolution(t *testing.T) {
	d := mustNew(t, units.NewVector(units.Kilometer, 0, 0, 0), units.NewVector(units.Kilometer, 1, 1, 1), []int{8})
	if diff := cmp.Diff([]int{8, 8, 8}, d.Resolution); diff != "" {
		t.Errorf("Resolution mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCodeLengthNeedsContext(t *testing.T) {
	left := units.NewVector(units.Kiloparsec, 0, 0)
	right := units.NewVector(units.CodeLength, 1, 1)
	if _, err := New(left, right, []int{4}); !errors.Is(err, errors.ErrCodeUnitContext) {
		t.Fatalf("New() error = %v, want %s", err, errors.ErrCodeUnitContext)
	}
	ctx, _ := units.NewContext("sim", 2, units.Kiloparsec)
	d := mustNew(t, left, right, []int{4}, WithContext(ctx))
	if diff := cmp.Diff([]float64{2, 2}, d.RightEdge.Value, approx); diff != "" {
		t.Errorf("RightEdge mismatch (-want +got):\n%s", diff)
	}
}

func TestPromote3D(t *testing.T) {
	d := mustNew(t,
		units.NewVector(units.Kiloparsec, 0, 0),
		units.NewVector(units.Kiloparsec, 2, 4),
		[]int{20, 40},
		WithNewAxis(2, 0.5),
	)
	d.Promote3D()
	if d.NDim != 3 || !d.Promoted() {
		t.Fatalf("NDim = %d, Promoted = %v after Promote3D", d.NDim, d.Promoted())
	}
	checks := []struct {
		name string
		got  []float64
		want []float64
	}{
		{"LeftEdge", d.LeftEdge.Value, []float64{0, 0, 0.5}},
		{"RightEdge", d.RightEdge.Value, []float64{2, 4, 0.5}},
		{"Center", d.Center.Value, []float64{1, 2, 0.5}},
		{"Width", d.Width.Value, []float64{2, 4, 0}},
		{"GridWidth", d.GridWidth.Value, []float64{0.1, 0.1, 0}},
		{"AspectRatio", d.AspectRatio, []float64{1, 2, 1}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.got, approx); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.name, diff)
		}
	}
	if diff := cmp.Diff([]int{20, 40, 1}, d.Resolution); diff != "" {
		t.Errorf("Resolution mismatch (-want +got):\n%s", diff)
	}

	// second call is a no-op
	d.Promote3D()
	if len(d.LeftEdge.Value) != 3 || len(d.Resolution) != 3 {
		t.Errorf("second Promote3D changed lengths: %v %v", d.LeftEdge.Value, d.Resolution)
	}
}

func TestPromote3DDefaultsToLeadingAxis(t *testing.T) {
	d := mustNew(t, units.NewVector(units.Kiloparsec, 1, 1), units.NewVector(units.Kiloparsec, 2, 2), []int{10})
	d.Promote3D()
	if diff := cmp.Diff([]float64{0, 1, 1}, d.LeftEdge.Value); diff != "" {
		t.Errorf("LeftEdge mismatch (-want +got):\n%s", diff)
	}
	if d.Resolution[0] != 1 {
		t.Errorf("inserted resolution = %d, want 1", d.Resolution[0])
	}
}

func TestPromote3DNoopOn3D(t *testing.T) {
	d := mustNew(t, units.NewVector(units.Kiloparsec, 0, 0, 0), units.NewVector(units.Kiloparsec, 1, 1, 1), []int{10})
	d.Promote3D()
	if d.Promoted() || len(d.LeftEdge.Value) != 3 {
		t.Errorf("Promote3D modified a 3-D descriptor")
	}
}

func TestVolume(t *testing.T) {
	d := mustNew(t, units.NewVector(units.Kilometer, 0, 0, 0), units.NewVector(units.Kilometer, 1, 2, 3), []int{10})
	if got := d.Volume(); got != 6 {
		t.Errorf("Volume() = %v, want 6", got)
	}
	got, err := d.VolumeIn(units.Meter)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(6e9, got, approx); diff != "" {
		t.Errorf("VolumeIn(m) mismatch (-want +got):\n%s", diff)
	}
}
