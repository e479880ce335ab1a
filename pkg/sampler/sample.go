package sampler

import (
	"math"
	"slices"

	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/units"
)

// grid is the set of sample points of one selection, in box coordinates.
type grid struct {
	domain *domain.Descriptor
	shape  []int

	// axes maps each array axis to a box axis.
	axes []int

	// lo and step give the box coordinate of cell i on array axis a as
	// lo[a] + (i+0.5)*step[a].
	lo, step []float64

	// fixed holds the box coordinate of axes that are not sampled.
	fixed [3]float64

	periodic bool
}

// Domain returns the domain sel would be sampled from.
func (ds *Dataset) Domain(sel selection.Selection) (*domain.Descriptor, error) {
	g, err := ds.plan(sel)
	if err != nil {
		return nil, err
	}
	return g.domain, nil
}

// Sample evaluates every field of sel and returns one layer per field, in
// field order. The arrays are lazy; the returned metadata has already
// materialized them.
func (ds *Dataset) Sample(sel selection.Selection) ([]layer.Spatial, error) {
	g, err := ds.plan(sel)
	if err != nil {
		return nil, err
	}
	out := make([]layer.Spatial, 0, len(sel.FieldList()))
	for _, f := range sel.FieldList() {
		data, isLog, err := ds.evaluate(g, f)
		if err != nil {
			return nil, err
		}
		s, err := ds.newLayer(g, f, data, isLog)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (ds *Dataset) plan(sel selection.Selection) (*grid, error) {
	switch s := sel.(type) {
	case selection.Region:
		return ds.planRegion(s)
	case *selection.Region:
		return ds.planRegion(*s)
	case selection.Slice:
		return ds.planSlice(s)
	case *selection.Slice:
		return ds.planSlice(*s)
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported selection %T", sel)
}

func (ds *Dataset) planRegion(r selection.Region) (*grid, error) {
	r.SetDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	left, right := ds.LeftEdge, ds.RightEdge
	if r.LeftEdge != nil {
		left = *r.LeftEdge
	}
	if r.RightEdge != nil {
		right = *r.RightEdge
	}
	d, err := domain.New(left, right, r.Resolution, domain.WithContext(ds.Context))
	if err != nil {
		return nil, err
	}

	le, err := ds.toBox(d.LeftEdge)
	if err != nil {
		return nil, err
	}
	re, err := ds.toBox(d.RightEdge)
	if err != nil {
		return nil, err
	}
	g := &grid{domain: d, shape: slices.Clone(d.Resolution), axes: []int{0, 1, 2}}
	for a := range 3 {
		g.lo = append(g.lo, le[a])
		g.step = append(g.step, (re[a]-le[a])/float64(d.Resolution[a]))
	}
	return g, nil
}

func (ds *Dataset) planSlice(s selection.Slice) (*grid, error) {
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	normal, _ := selection.NormalAxis(s.Normal)
	h, v := selection.ImageAxes(normal)

	center := ds.Center()
	if s.Center != nil {
		center = *s.Center
	}
	cu := center.Unit
	width, err := ds.extent(s.Width, h, cu)
	if err != nil {
		return nil, err
	}
	height, err := ds.extent(s.Height, v, cu)
	if err != nil {
		return nil, err
	}

	c := center.Value
	left := units.NewVector(cu, c[h]-width/2, c[v]-height/2)
	right := units.NewVector(cu, c[h]+width/2, c[v]+height/2)
	d, err := domain.New(left, right, s.Resolution,
		domain.WithContext(ds.Context),
		domain.WithNewAxis(normal, c[normal]))
	if err != nil {
		return nil, err
	}

	le, err := ds.toBox(units.NewVector(cu, fill3(normal, c[normal], h, left.Value[0], v, left.Value[1])...))
	if err != nil {
		return nil, err
	}
	re, err := ds.toBox(units.NewVector(cu, fill3(normal, c[normal], h, right.Value[0], v, right.Value[1])...))
	if err != nil {
		return nil, err
	}
	g := &grid{domain: d, shape: slices.Clone(d.Resolution), axes: []int{h, v}, periodic: s.Periodic}
	for i, a := range g.axes {
		g.lo = append(g.lo, le[a])
		g.step = append(g.step, (re[a]-le[a])/float64(d.Resolution[i]))
	}
	g.fixed[normal] = le[normal]
	return g, nil
}

// extent returns q in unit, or the box width along axis when q is nil.
func (ds *Dataset) extent(q *units.Quantity, axis int, unit units.Unit) (float64, error) {
	if q == nil {
		q = &units.Quantity{Value: ds.RightEdge.Value[axis] - ds.LeftEdge.Value[axis], Unit: ds.Unit()}
	}
	out, err := q.To(unit, ds.Context)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// toBox maps a point onto box coordinates.
func (ds *Dataset) toBox(p units.Vector) ([]float64, error) {
	in, err := p.To(ds.Unit(), ds.Context)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(in.Value))
	for i, x := range in.Value {
		out[i] = (x - ds.LeftEdge.Value[i]) / (ds.RightEdge.Value[i] - ds.LeftEdge.Value[i])
	}
	return out, nil
}

func fill3(a int, va float64, b int, vb float64, c int, vc float64) []float64 {
	out := make([]float64, 3)
	out[a], out[b], out[c] = va, vb, vc
	return out
}

// evaluate returns the lazily sampled values of f on g.
func (ds *Dataset) evaluate(g *grid, f selection.Field) (ndarray.Array, bool, error) {
	p, err := ds.Profile(f)
	if err != nil {
		return nil, false, err
	}
	isLog, err := ds.TakeLog(f)
	if err != nil {
		return nil, false, err
	}
	t := ds.Time
	var data ndarray.Array = ndarray.Delayed(g.shape, func() (*ndarray.Dense, error) {
		n := 1
		for _, s := range g.shape {
			n *= s
		}
		vals := make([]float64, n)
		idx := make([]int, len(g.shape))
		for off := range vals {
			vals[off] = p.eval(g.point(idx), t)
			next(idx, g.shape)
		}
		return ndarray.NewDense(g.shape, vals)
	})
	if isLog {
		if data, err = ndarray.Log10(data); err != nil {
			return nil, false, err
		}
	}
	return data, isLog, nil
}

// point returns the box coordinates of the cell at idx.
func (g *grid) point(idx []int) [3]float64 {
	u := g.fixed
	for i, a := range g.axes {
		u[a] = g.lo[i] + (float64(idx[i])+0.5)*g.step[i]
	}
	if g.periodic {
		for a := range u {
			u[a] -= math.Floor(u[a])
		}
	}
	return u
}

// next advances idx in row-major order.
func next(idx, shape []int) {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < shape[i] {
			return
		}
		idx[i] = 0
	}
}

func (ds *Dataset) newLayer(g *grid, f selection.Field, data ndarray.Array, isLog bool) (layer.Spatial, error) {
	md, err := layer.NewMetadata(data, g.domain, isLog, nil, map[string]any{
		"dataset": ds.Name,
		"time":    ds.Time,
	})
	if err != nil {
		return layer.Spatial{}, err
	}
	s := layer.NewSpatial(data, g.domain, f.ID())
	s.Kwargs[layer.KeyMetadata] = md
	return s, nil
}
