package domain

import (
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

// ReferenceFrame is a frozen copy of the geometry of one descriptor, used as
// the anchor for scale and translation of every other layer.
type ReferenceFrame struct {
	leftEdge    units.Vector
	gridWidth   units.Vector
	aspectRatio []float64
	ndim        int
	ctx         *units.Context
}

// FrameState is the serializable form of a ReferenceFrame.
type FrameState struct {
	LeftEdge    units.Vector   `json:"left_edge" bson:"left_edge"`
	GridWidth   units.Vector   `json:"grid_width" bson:"grid_width"`
	AspectRatio []float64      `json:"aspect_ratio" bson:"aspect_ratio"`
	NDim        int            `json:"n_d" bson:"n_d"`
	Context     *units.Context `json:"context,omitempty" bson:"context,omitempty"`
}

// NewReferenceFrame snapshots d. Later changes to d do not affect the frame.
func NewReferenceFrame(d *Descriptor) *ReferenceFrame {
	return &ReferenceFrame{
		leftEdge:    d.LeftEdge.Clone(),
		gridWidth:   d.GridWidth.Clone(),
		aspectRatio: append([]float64(nil), d.AspectRatio...),
		ndim:        d.NDim,
		ctx:         d.Context,
	}
}

// FrameFromState restores a frame saved with State.
func FrameFromState(s FrameState) *ReferenceFrame {
	return &ReferenceFrame{
		leftEdge:    s.LeftEdge.Clone(),
		gridWidth:   s.GridWidth.Clone(),
		aspectRatio: append([]float64(nil), s.AspectRatio...),
		ndim:        s.NDim,
		ctx:         s.Context,
	}
}

// State returns the serializable form of f.
func (f *ReferenceFrame) State() FrameState {
	return FrameState{
		LeftEdge:    f.leftEdge.Clone(),
		GridWidth:   f.gridWidth.Clone(),
		AspectRatio: append([]float64(nil), f.aspectRatio...),
		NDim:        f.ndim,
		Context:     f.ctx,
	}
}

func (f *ReferenceFrame) NDim() int               { return f.ndim }
func (f *ReferenceFrame) Unit() units.Unit        { return f.leftEdge.Unit }
func (f *ReferenceFrame) LeftEdge() units.Vector  { return f.leftEdge.Clone() }
func (f *ReferenceFrame) GridWidth() units.Vector { return f.gridWidth.Clone() }

// AspectRatio returns a copy of the anchor's aspect ratio.
func (f *ReferenceFrame) AspectRatio() []float64 {
	return append([]float64(nil), f.aspectRatio...)
}

// CalculateScale returns other's grid width relative to the anchor's,
// divided by the anchor's aspect ratio. Axes where the anchor's grid width is
// zero get a scale of 1.
func (f *ReferenceFrame) CalculateScale(other *Descriptor) ([]float64, error) {
	gw, err := f.convert(other, other.GridWidth)
	if err != nil {
		return nil, err
	}
	scale := make([]float64, f.ndim)
	for i := range scale {
		if f.gridWidth.Value[i] == 0 {
			scale[i] = 1
			continue
		}
		scale[i] = gw[i] / f.gridWidth.Value[i] / f.aspectRatio[i]
	}
	return scale, nil
}

// CalculateTranslation returns the offset of other's left edge from the
// anchor's left edge, in anchor pixels. Axes where the anchor's grid width is
// zero get a translation of 0.
func (f *ReferenceFrame) CalculateTranslation(other *Descriptor) ([]float64, error) {
	le, err := f.convert(other, other.LeftEdge)
	if err != nil {
		return nil, err
	}
	tr := make([]float64, f.ndim)
	for i := range tr {
		if f.gridWidth.Value[i] == 0 {
			continue
		}
		tr[i] = (le[i] - f.leftEdge.Value[i]) / f.gridWidth.Value[i]
	}
	return tr, nil
}

// convert expresses v, a vector of other, in the frame's unit.
func (f *ReferenceFrame) convert(other *Descriptor, v units.Vector) ([]float64, error) {
	if other.NDim != f.ndim || v.Len() != f.ndim {
		return nil, errors.New(errors.ErrCodeInvalidShape, "cannot place a %d-D layer against a %d-D reference", other.NDim, f.ndim)
	}
	return units.Convert(v.Value, v.Unit, other.Context, f.leftEdge.Unit, f.ctx)
}
