package domain

import (
	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Descriptor is the physical geometry of one sampled layer: its extent,
// resolution and the quantities derived from them.
//
// Derived fields are computed once by [New] and must not be modified. The
// only mutation a Descriptor supports is [Descriptor.Promote3D].
type Descriptor struct {
	LeftEdge   units.Vector `json:"left_edge" bson:"left_edge"`
	RightEdge  units.Vector `json:"right_edge" bson:"right_edge"`
	Resolution []int        `json:"resolution" bson:"resolution"`

	Center        units.Vector `json:"center" bson:"center"`
	Width         units.Vector `json:"width" bson:"width"`
	GridWidth     units.Vector `json:"grid_width" bson:"grid_width"`
	AspectRatio   []float64    `json:"aspect_ratio" bson:"aspect_ratio"`
	RequiresScale bool         `json:"requires_scale" bson:"requires_scale"`
	NDim          int          `json:"n_d" bson:"n_d"`

	// Context resolves code_length edges. Nil for physical units.
	Context *units.Context `json:"context,omitempty" bson:"context,omitempty"`

	axisPosition int
	axisValue    float64
	promoted     bool
}

// Option configures a Descriptor.
type Option func(*Descriptor)

// WithContext attaches the conversion context used for relative units.
func WithContext(ctx *units.Context) Option {
	return func(d *Descriptor) { d.Context = ctx }
}

// WithNewAxis sets where Promote3D inserts the constant coordinate of a 2-D
// descriptor and the coordinate's value, in the descriptor's unit.
func WithNewAxis(position int, value float64) Option {
	return func(d *Descriptor) {
		d.axisPosition = position
		d.axisValue = value
	}
}

// New builds a Descriptor. The right edge is re-expressed in the left edge's
// unit. A resolution of length 1 applies to every axis.
func New(left, right units.Vector, resolution []int, opts ...Option) (*Descriptor, error) {
	d := &Descriptor{}
	for _, opt := range opts {
		opt(d)
	}

	n := left.Len()
	if n != right.Len() {
		return nil, errors.New(errors.ErrCodeInvalidShape, "length of edge arrays must match (left %d, right %d)", n, right.Len())
	}
	if n != 2 && n != 3 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "edges must have 2 or 3 components, got %d", n)
	}
	switch len(resolution) {
	case n:
		d.Resolution = append([]int(nil), resolution...)
	case 1:
		d.Resolution = make([]int, n)
		for i := range d.Resolution {
			d.Resolution[i] = resolution[0]
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidShape, "length of resolution (%d) does not match edge arrays (%d)", len(resolution), n)
	}
	for _, r := range d.Resolution {
		if r <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidShape, "resolution must be positive, got %v", d.Resolution)
		}
	}
	if n == 2 && (d.axisPosition < 0 || d.axisPosition > 2) {
		return nil, errors.New(errors.ErrCodeInvalidShape, "new axis position %d out of range [0, 2]", d.axisPosition)
	}
	if _, err := units.Parse(string(left.Unit)); err != nil {
		return nil, err
	}

	rightInLeft, err := right.To(left.Unit, d.Context)
	if err != nil {
		return nil, err
	}
	d.LeftEdge = left.Clone()
	d.RightEdge = rightInLeft
	d.NDim = n
	d.derive()
	return d, nil
}

// derive computes center, width, grid width and aspect ratio from the edges.
func (d *Descriptor) derive() {
	n := d.NDim
	u := d.LeftEdge.Unit

	width := make([]float64, n)
	floats.SubTo(width, d.RightEdge.Value, d.LeftEdge.Value)

	center := make([]float64, n)
	floats.AddTo(center, d.LeftEdge.Value, d.RightEdge.Value)
	floats.Scale(0.5, center)

	res := make([]float64, n)
	for i, r := range d.Resolution {
		res[i] = float64(r)
	}
	gw := make([]float64, n)
	floats.DivTo(gw, width, res)

	aspect := make([]float64, n)
	if width[0] == 0 {
		for i := range aspect {
			aspect[i] = 1
		}
	} else {
		for i := range aspect {
			aspect[i] = width[i] / width[0]
		}
	}

	d.Width = units.Vector{Value: width, Unit: u}
	d.Center = units.Vector{Value: center, Unit: u}
	d.GridWidth = units.Vector{Value: gw, Unit: u}
	d.AspectRatio = aspect
	d.RequiresScale = false
	for _, a := range aspect {
		if a != 1 {
			d.RequiresScale = true
		}
	}
}

// Unit returns the unit all of the descriptor's vectors are expressed in.
func (d *Descriptor) Unit() units.Unit { return d.LeftEdge.Unit }

// Promoted reports whether Promote3D inserted an axis.
func (d *Descriptor) Promoted() bool { return d.promoted }

// Promote3D turns a 2-D descriptor into a 3-D one by inserting a constant
// coordinate at the configured axis position. The inserted axis has zero
// width, zero grid width, resolution 1 and aspect ratio 1. Calling Promote3D
// on a 3-D or already promoted descriptor does nothing.
func (d *Descriptor) Promote3D() {
	if d.NDim == 3 || d.promoted {
		return
	}
	p := d.axisPosition
	d.LeftEdge.Value = insertFloat(d.LeftEdge.Value, p, d.axisValue)
	d.RightEdge.Value = insertFloat(d.RightEdge.Value, p, d.axisValue)
	d.Center.Value = insertFloat(d.Center.Value, p, d.axisValue)
	d.Width.Value = insertFloat(d.Width.Value, p, 0)
	d.GridWidth.Value = insertFloat(d.GridWidth.Value, p, 0)
	d.AspectRatio = insertFloat(d.AspectRatio, p, 1)

	res := make([]int, 0, len(d.Resolution)+1)
	res = append(res, d.Resolution[:p]...)
	res = append(res, 1)
	d.Resolution = append(res, d.Resolution[p:]...)

	d.NDim = 3
	d.promoted = true
}

// Volume returns the product of the widths in the descriptor's unit.
func (d *Descriptor) Volume() float64 {
	return floats.Prod(d.Width.Value)
}

// VolumeIn returns the product of the widths after converting them to unit.
func (d *Descriptor) VolumeIn(unit units.Unit) (float64, error) {
	w, err := units.Convert(d.Width.Value, d.Unit(), d.Context, unit, d.Context)
	if err != nil {
		return 0, err
	}
	return floats.Prod(w), nil
}

func insertFloat(s []float64, pos int, v float64) []float64 {
	out := make([]float64, 0, len(s)+1)
	out = append(out, s[:pos]...)
	out = append(out, v)
	return append(out, s[pos:]...)
}
