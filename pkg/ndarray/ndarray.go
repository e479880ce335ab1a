// Package ndarray provides the minimal n-dimensional float arrays that sampled
// image layers are made of.
//
// Two implementations of [Array] exist: [Dense], which holds its values in
// row-major order, and [Lazy], which defers producing its values until
// [Array.Compute] is first called. Operations in this package preserve
// laziness: stacking or transforming a lazy array yields a lazy array.
package ndarray

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// Array is an n-dimensional array of float64 values.
type Array interface {
	// Shape returns the array dimensions. Callers must not modify the result.
	Shape() []int

	// Compute materializes the array.
	Compute() (*Dense, error)

	// Lazy reports whether values are produced on demand.
	Lazy() bool
}

// Dense is an in-memory row-major array.
type Dense struct {
	shape []int
	data  []float64
}

// NewDense wraps data with the given shape. The data length must equal the
// product of the shape.
func NewDense(shape []int, data []float64) (*Dense, error) {
	n, err := size(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, errors.New(errors.ErrCodeInvalidShape, "data length %d does not match shape %v", len(data), shape)
	}
	return &Dense{shape: slices.Clone(shape), data: data}, nil
}

// Zeros returns a zero-filled array.
func Zeros(shape ...int) *Dense {
	n, err := size(shape)
	if err != nil {
		panic(err)
	}
	return &Dense{shape: slices.Clone(shape), data: make([]float64, n)}
}

// Full returns an array filled with v.
func Full(v float64, shape ...int) *Dense {
	d := Zeros(shape...)
	for i := range d.data {
		d.data[i] = v
	}
	return d
}

func (d *Dense) Shape() []int             { return d.shape }
func (d *Dense) Compute() (*Dense, error) { return d, nil }
func (d *Dense) Lazy() bool               { return false }

// Data returns the backing slice in row-major order.
func (d *Dense) Data() []float64 { return d.data }

// NDim returns the number of dimensions.
func (d *Dense) NDim() int { return len(d.shape) }

// At returns the value at idx. It panics on an out-of-range index.
func (d *Dense) At(idx ...int) float64 {
	return d.data[d.offset(idx)]
}

// Set stores v at idx.
func (d *Dense) Set(v float64, idx ...int) {
	d.data[d.offset(idx)] = v
}

func (d *Dense) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic("ndarray: index rank does not match array rank")
	}
	off := 0
	for i, n := range d.shape {
		if idx[i] < 0 || idx[i] >= n {
			panic("ndarray: index out of range")
		}
		off = off*n + idx[i]
	}
	return off
}

// Lazy is an array whose values are produced by a function on first use.
// The function runs at most once; its result (or error) is cached.
type Lazy struct {
	shape []int
	fn    func() (*Dense, error)

	once sync.Once
	val  *Dense
	err  error
}

// Delayed returns a lazy array of the given shape backed by fn.
func Delayed(shape []int, fn func() (*Dense, error)) *Lazy {
	return &Lazy{shape: slices.Clone(shape), fn: fn}
}

func (l *Lazy) Shape() []int { return l.shape }
func (l *Lazy) Lazy() bool   { return true }

// Compute runs the backing function once and checks the result's shape.
func (l *Lazy) Compute() (*Dense, error) {
	l.once.Do(func() {
		l.val, l.err = l.fn()
		if l.err == nil && l.val == nil {
			l.err = errors.New(errors.ErrCodeInternal, "delayed array produced no data")
			return
		}
		if l.err == nil && !slices.Equal(l.val.shape, l.shape) {
			l.val, l.err = nil, errors.New(errors.ErrCodeInvalidShape, "delayed array produced shape %v, declared %v", l.val.shape, l.shape)
		}
	})
	return l.val, l.err
}

// Stack joins arrays of identical shape along a new leading axis. The result
// is lazy if any input is lazy.
func Stack(arrays []Array) (Array, error) {
	if len(arrays) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "cannot stack zero arrays")
	}
	inner := arrays[0].Shape()
	lazy := false
	for i, a := range arrays {
		if !slices.Equal(a.Shape(), inner) {
			return nil, errors.New(errors.ErrCodeInvalidShape, "array %d has shape %v, want %v", i, a.Shape(), inner)
		}
		lazy = lazy || a.Lazy()
	}
	shape := append([]int{len(arrays)}, inner...)

	stack := func() (*Dense, error) {
		n, _ := size(inner)
		data := make([]float64, 0, n*len(arrays))
		for _, a := range arrays {
			d, err := a.Compute()
			if err != nil {
				return nil, err
			}
			data = append(data, d.data...)
		}
		return &Dense{shape: shape, data: data}, nil
	}
	if lazy {
		return Delayed(shape, stack), nil
	}
	return stack()
}

// Map applies fn to every element, preserving laziness. Eager arrays are
// computed immediately.
func Map(a Array, fn func(float64) float64) (Array, error) {
	apply := func() (*Dense, error) {
		d, err := a.Compute()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(d.data))
		for i, v := range d.data {
			out[i] = fn(v)
		}
		return &Dense{shape: slices.Clone(d.shape), data: out}, nil
	}
	if a.Lazy() {
		return Delayed(a.Shape(), apply), nil
	}
	return apply()
}

// Log10 takes the base-10 logarithm of every element, preserving laziness.
func Log10(a Array) (Array, error) {
	return Map(a, math.Log10)
}

// MinMax returns the smallest and largest value of a. This materializes lazy
// arrays.
func MinMax(a Array) (lo, hi float64, err error) {
	d, err := a.Compute()
	if err != nil {
		return 0, 0, err
	}
	if len(d.data) == 0 {
		return 0, 0, errors.New(errors.ErrCodeInvalidState, "cannot take the range of an empty array")
	}
	return floats.Min(d.data), floats.Max(d.data), nil
}

// Rescale maps [lo, hi] linearly onto [0, 1]. When lo == hi every value maps
// to 0.
func Rescale(a Array, lo, hi float64) (Array, error) {
	span := hi - lo
	return Map(a, func(v float64) float64 {
		if span == 0 {
			return 0
		}
		return (v - lo) / span
	})
}

func size(shape []int) (int, error) {
	n := 1
	for _, s := range shape {
		if s < 0 {
			return 0, errors.New(errors.ErrCodeInvalidShape, "negative dimension in shape %v", shape)
		}
		n *= s
	}
	return n, nil
}
