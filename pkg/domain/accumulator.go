package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

// DefaultUnit is the working unit of an Accumulator created without one.
const DefaultUnit = units.Kiloparsec

// Accumulator tracks the union bounding box of many layers, and the finest
// grid width among them, in a single working unit.
//
// Center and width are derived on demand: after UpdateEdges or
// UpdateFromLayer with updateCenterWidth false, Finalize must be called
// before Center or Width can be read.
type Accumulator struct {
	unit units.Unit
	ctx  *units.Context

	left, right   []float64
	center, width []float64
	gridWidth     []float64
	sceneCenter   []float64

	stale bool
}

// AccumulatorState is the serializable form of an Accumulator.
type AccumulatorState struct {
	Unit        units.Unit     `json:"unit" bson:"unit"`
	Context     *units.Context `json:"context,omitempty" bson:"context,omitempty"`
	LeftEdge    []float64      `json:"left_edge,omitempty" bson:"left_edge,omitempty"`
	RightEdge   []float64      `json:"right_edge,omitempty" bson:"right_edge,omitempty"`
	Center      []float64      `json:"center,omitempty" bson:"center,omitempty"`
	Width       []float64      `json:"width,omitempty" bson:"width,omitempty"`
	GridWidth   []float64      `json:"grid_width,omitempty" bson:"grid_width,omitempty"`
	SceneCenter []float64      `json:"scene_center,omitempty" bson:"scene_center,omitempty"`
	Stale       bool           `json:"stale,omitempty" bson:"stale,omitempty"`
}

// NewAccumulator returns an empty accumulator working in unit. An empty unit
// selects DefaultUnit.
func NewAccumulator(unit units.Unit, ctx *units.Context) (*Accumulator, error) {
	if unit == "" {
		unit = DefaultUnit
	}
	a := &Accumulator{}
	if err := a.SetWorkingUnit(unit, ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// AccumulatorFromState restores an accumulator saved with State.
func AccumulatorFromState(s AccumulatorState) (*Accumulator, error) {
	if _, err := units.Parse(string(s.Unit)); err != nil {
		return nil, err
	}
	if s.Unit.IsRelative() && s.Context == nil {
		return nil, errors.New(errors.ErrCodeUnitContext, "accumulator state in %q has no unit context", s.Unit)
	}
	return &Accumulator{
		unit:        s.Unit,
		ctx:         s.Context,
		left:        cloneFloats(s.LeftEdge),
		right:       cloneFloats(s.RightEdge),
		center:      cloneFloats(s.Center),
		width:       cloneFloats(s.Width),
		gridWidth:   cloneFloats(s.GridWidth),
		sceneCenter: cloneFloats(s.SceneCenter),
		stale:       s.Stale,
	}, nil
}

// State returns the serializable form of a.
func (a *Accumulator) State() AccumulatorState {
	return AccumulatorState{
		Unit:        a.unit,
		Context:     a.ctx,
		LeftEdge:    cloneFloats(a.left),
		RightEdge:   cloneFloats(a.right),
		Center:      cloneFloats(a.center),
		Width:       cloneFloats(a.width),
		GridWidth:   cloneFloats(a.gridWidth),
		SceneCenter: cloneFloats(a.sceneCenter),
		Stale:       a.stale,
	}
}

// Unit returns the working unit.
func (a *Accumulator) Unit() units.Unit { return a.unit }

// Context returns the conversion context, or nil.
func (a *Accumulator) Context() *units.Context { return a.ctx }

// SetWorkingUnit switches the working unit and, when ctx is non-nil, the
// conversion context. Every stored vector is re-expressed in the new unit.
// A relative unit fails with UNIT_CONTEXT unless a context is supplied or
// already held.
func (a *Accumulator) SetWorkingUnit(unit units.Unit, ctx *units.Context) error {
	if _, err := units.Parse(string(unit)); err != nil {
		return err
	}
	newCtx := a.ctx
	if ctx != nil {
		newCtx = ctx
	}
	if unit.IsRelative() && newCtx == nil {
		return errors.New(errors.ErrCodeUnitContext, "to use %q, a unit context must be provided", unit)
	}
	if a.unit == unit && ctx == nil {
		return nil
	}

	stored := []*[]float64{&a.left, &a.right, &a.center, &a.width, &a.gridWidth, &a.sceneCenter}
	converted := make([][]float64, len(stored))
	for i, p := range stored {
		if *p == nil {
			continue
		}
		if a.unit == "" {
			return errors.New(errors.ErrCodeInvalidState, "accumulator holds values without a unit")
		}
		v, err := units.Convert(*p, a.unit, a.ctx, unit, newCtx)
		if err != nil {
			return err
		}
		converted[i] = v
	}
	for i, p := range stored {
		*p = converted[i]
	}
	a.unit = unit
	a.ctx = newCtx
	return nil
}

// UpdateEdges folds edges into the running bounding box: the left edge
// becomes the component-wise minimum and the right edge the component-wise
// maximum of everything seen so far. Either edge may be nil. Edges are
// converted to the working unit using the accumulator's context.
func (a *Accumulator) UpdateEdges(left, right *units.Vector, updateCenterWidth bool) error {
	return a.updateEdges(left, right, a.ctx, updateCenterWidth)
}

// UpdateFromLayer folds d's edges into the bounding box and d's grid width
// into the running component-wise minimum grid width.
func (a *Accumulator) UpdateFromLayer(d *Descriptor, updateCenterWidth bool) error {
	ctx := d.Context
	if ctx == nil {
		ctx = a.ctx
	}
	gw, err := a.toWorking(d.GridWidth, ctx)
	if err != nil {
		return err
	}
	if a.gridWidth != nil && len(gw) != len(a.gridWidth) {
		return errors.New(errors.ErrCodeInvalidShape, "grid width has %d components, accumulator has %d", len(gw), len(a.gridWidth))
	}
	if err := a.updateEdges(&d.LeftEdge, &d.RightEdge, ctx, updateCenterWidth); err != nil {
		return err
	}
	if a.gridWidth == nil {
		a.gridWidth = gw
		return nil
	}
	for i, v := range gw {
		a.gridWidth[i] = math.Min(a.gridWidth[i], v)
	}
	return nil
}

func (a *Accumulator) updateEdges(left, right *units.Vector, ctx *units.Context, updateCenterWidth bool) error {
	if left == nil && right == nil {
		return nil
	}
	var le, re []float64
	var err error
	if left != nil {
		if le, err = a.toWorking(*left, ctx); err != nil {
			return err
		}
		if err := a.checkLen(le); err != nil {
			return err
		}
	}
	if right != nil {
		if re, err = a.toWorking(*right, ctx); err != nil {
			return err
		}
		if err := a.checkLen(re); err != nil {
			return err
		}
	}
	if le != nil && re != nil && len(le) != len(re) {
		return errors.New(errors.ErrCodeInvalidShape, "length of edge arrays must match (left %d, right %d)", len(le), len(re))
	}

	if le != nil {
		if a.left == nil {
			a.left = le
		} else {
			for i, v := range le {
				a.left[i] = math.Min(a.left[i], v)
			}
		}
	}
	if re != nil {
		if a.right == nil {
			a.right = re
		} else {
			for i, v := range re {
				a.right[i] = math.Max(a.right[i], v)
			}
		}
	}

	if updateCenterWidth {
		return a.Finalize()
	}
	a.stale = true
	return nil
}

// Finalize recomputes center and width from the current edges. It fails with
// INVALID_STATE when no edges have been accumulated.
func (a *Accumulator) Finalize() error {
	if a.left == nil || a.right == nil {
		return errors.New(errors.ErrCodeInvalidState, "cannot compute center and width before both edges are set")
	}
	n := len(a.left)
	a.center = make([]float64, n)
	floats.AddTo(a.center, a.left, a.right)
	floats.Scale(0.5, a.center)
	a.width = make([]float64, n)
	floats.SubTo(a.width, a.right, a.left)
	a.stale = false
	return nil
}

// SetSceneCenter overrides the origin used by CalculateTranslation.
func (a *Accumulator) SetSceneCenter(v units.Vector) error {
	c, err := a.toWorking(v, a.ctx)
	if err != nil {
		return err
	}
	if err := a.checkLen(c); err != nil {
		return err
	}
	a.sceneCenter = c
	return nil
}

// Clone returns an independent copy of a.
func (a *Accumulator) Clone() *Accumulator {
	return &Accumulator{
		unit:        a.unit,
		ctx:         a.ctx,
		left:        cloneFloats(a.left),
		right:       cloneFloats(a.right),
		center:      cloneFloats(a.center),
		width:       cloneFloats(a.width),
		gridWidth:   cloneFloats(a.gridWidth),
		sceneCenter: cloneFloats(a.sceneCenter),
		stale:       a.stale,
	}
}

// NDim returns the dimensionality of the accumulated edges, or 0 when empty.
func (a *Accumulator) NDim() int {
	switch {
	case a.left != nil:
		return len(a.left)
	case a.right != nil:
		return len(a.right)
	}
	return len(a.gridWidth)
}

// LeftEdge returns the running left edge.
func (a *Accumulator) LeftEdge() (units.Vector, error) {
	return a.vector(a.left, "left edge")
}

// RightEdge returns the running right edge.
func (a *Accumulator) RightEdge() (units.Vector, error) {
	return a.vector(a.right, "right edge")
}

// Center returns the box center as of the last Finalize.
func (a *Accumulator) Center() (units.Vector, error) {
	if a.stale {
		return units.Vector{}, errors.New(errors.ErrCodeInvalidState, "center is out of date; call Finalize")
	}
	return a.vector(a.center, "center")
}

// Width returns the box width as of the last Finalize.
func (a *Accumulator) Width() (units.Vector, error) {
	if a.stale {
		return units.Vector{}, errors.New(errors.ErrCodeInvalidState, "width is out of date; call Finalize")
	}
	return a.vector(a.width, "width")
}

// GridWidth returns the finest grid width seen.
func (a *Accumulator) GridWidth() (units.Vector, error) {
	return a.vector(a.gridWidth, "grid width")
}

// SceneCenter returns the scene center override and whether one is set.
func (a *Accumulator) SceneCenter() (units.Vector, bool) {
	if a.sceneCenter == nil {
		return units.Vector{}, false
	}
	return units.NewVector(a.unit, a.sceneCenter...), true
}

// CalculateScale returns d's grid width relative to the finest grid width.
// Axes where the finest grid width is zero get a scale of 1.
func (a *Accumulator) CalculateScale(d *Descriptor) ([]float64, error) {
	if a.gridWidth == nil {
		return nil, errors.New(errors.ErrCodeInvalidState, "grid width is not set; process at least one layer first")
	}
	gw, err := a.layerVector(d, d.GridWidth)
	if err != nil {
		return nil, err
	}
	scale := make([]float64, len(gw))
	for i := range scale {
		if a.gridWidth[i] == 0 {
			scale[i] = 1
			continue
		}
		scale[i] = gw[i] / a.gridWidth[i]
	}
	return scale, nil
}

// CalculateTranslation returns the offset of d's left edge from the origin,
// in units of the finest grid width. The origin is the scene center when set
// and the accumulated left edge otherwise.
func (a *Accumulator) CalculateTranslation(d *Descriptor) ([]float64, error) {
	if a.gridWidth == nil {
		return nil, errors.New(errors.ErrCodeInvalidState, "grid width is not set; process at least one layer first")
	}
	origin := a.sceneCenter
	if origin == nil {
		origin = a.left
	}
	if origin == nil {
		return nil, errors.New(errors.ErrCodeInvalidState, "no origin: set a scene center or accumulate edges first")
	}
	le, err := a.layerVector(d, d.LeftEdge)
	if err != nil {
		return nil, err
	}
	if len(origin) != len(le) {
		return nil, errors.New(errors.ErrCodeInvalidShape, "origin has %d components, layer has %d", len(origin), len(le))
	}
	tr := make([]float64, len(le))
	for i := range tr {
		if a.gridWidth[i] == 0 {
			continue
		}
		tr[i] = (le[i] - origin[i]) / a.gridWidth[i]
	}
	return tr, nil
}

func (a *Accumulator) layerVector(d *Descriptor, v units.Vector) ([]float64, error) {
	if v.Len() != len(a.gridWidth) {
		return nil, errors.New(errors.ErrCodeInvalidShape, "cannot place a %d-D layer against a %d-D accumulator", v.Len(), len(a.gridWidth))
	}
	ctx := d.Context
	if ctx == nil {
		ctx = a.ctx
	}
	return a.toWorking(v, ctx)
}

func (a *Accumulator) toWorking(v units.Vector, ctx *units.Context) ([]float64, error) {
	return units.Convert(v.Value, v.Unit, ctx, a.unit, a.ctx)
}

func (a *Accumulator) checkLen(v []float64) error {
	if n := a.NDim(); n != 0 && len(v) != n {
		return errors.New(errors.ErrCodeInvalidShape, "edge has %d components, accumulator has %d", len(v), n)
	}
	return nil
}

func (a *Accumulator) vector(v []float64, name string) (units.Vector, error) {
	if v == nil {
		return units.Vector{}, errors.New(errors.ErrCodeInvalidState, "%s is not set", name)
	}
	return units.NewVector(a.unit, v...), nil
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}
