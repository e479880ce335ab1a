// Package units provides length units, unit-tagged vectors and the conversion
// contexts needed to resolve relative units.
//
// Physical units (m, km, pc, kpc, ...) convert between each other directly.
// The relative unit [CodeLength] has no fixed physical size: converting it
// requires a [Context] that states how many meters one code length spans.
// Converting a unit to itself never needs a context.
package units

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// Unit is a length unit symbol.
type Unit string

// Supported length units.
const (
	Meter            Unit = "m"
	Centimeter       Unit = "cm"
	Kilometer        Unit = "km"
	AstronomicalUnit Unit = "au"
	LightYear        Unit = "ly"
	Parsec           Unit = "pc"
	Kiloparsec       Unit = "kpc"
	Megaparsec       Unit = "Mpc"

	// CodeLength is the simulation's native length unit. Its physical size
	// is only known through a Context.
	CodeLength Unit = "code_length"
)

// metersPer holds the size of one unit in meters.
var metersPer = map[Unit]float64{
	Meter:            1,
	Centimeter:       0.01,
	Kilometer:        1000,
	AstronomicalUnit: 1.495978707e11,
	LightYear:        9.4607304725808e15,
	Parsec:           3.0856775814913673e16,
	Kiloparsec:       3.0856775814913673e19,
	Megaparsec:       3.0856775814913673e22,
}

// IsRelative reports whether u needs a Context to be converted.
func (u Unit) IsRelative() bool {
	return u == CodeLength
}

// String returns the unit symbol.
func (u Unit) String() string { return string(u) }

// Parse validates a unit symbol.
func Parse(s string) (Unit, error) {
	u := Unit(strings.TrimSpace(s))
	if u == CodeLength {
		return u, nil
	}
	if _, ok := metersPer[u]; ok {
		return u, nil
	}
	return "", errors.New(errors.ErrCodeInvalidUnit, "unknown length unit %q (must be one of: %s)", s, strings.Join(Names(), ", "))
}

// Names returns every supported unit symbol in sorted order.
func Names() []string {
	names := make([]string, 0, len(metersPer)+1)
	for u := range metersPer {
		names = append(names, string(u))
	}
	names = append(names, string(CodeLength))
	sort.Strings(names)
	return names
}

// Context resolves relative units for one dataset.
type Context struct {
	// Name identifies the dataset the context belongs to.
	Name string `json:"name" bson:"name"`

	// CodeLength is the size of one code_length in meters.
	CodeLength float64 `json:"code_length" bson:"code_length"`
}

// NewContext returns a context in which one code_length spans length in unit.
func NewContext(name string, length float64, unit Unit) (*Context, error) {
	if unit.IsRelative() {
		return nil, errors.New(errors.ErrCodeInvalidUnit, "code length must be expressed in a physical unit, got %q", unit)
	}
	m, ok := metersPer[unit]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidUnit, "unknown length unit %q", unit)
	}
	if length <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidUnit, "code length must be positive, got %g", length)
	}
	return &Context{Name: name, CodeLength: length * m}, nil
}

// meters returns the size of u in meters.
func meters(u Unit, ctx *Context) (float64, error) {
	if u.IsRelative() {
		if ctx == nil {
			return 0, errors.New(errors.ErrCodeUnitContext, "converting %q requires a unit context", u)
		}
		return ctx.CodeLength, nil
	}
	m, ok := metersPer[u]
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidUnit, "unknown length unit %q", u)
	}
	return m, nil
}

// Convert re-expresses values given in from (resolved with fromCtx) in to
// (resolved with toCtx). The input slice is not modified.
func Convert(values []float64, from Unit, fromCtx *Context, to Unit, toCtx *Context) ([]float64, error) {
	out := make([]float64, len(values))
	copy(out, values)
	if from == to && sameContext(fromCtx, toCtx) {
		return out, nil
	}
	mf, err := meters(from, fromCtx)
	if err != nil {
		return nil, err
	}
	mt, err := meters(to, toCtx)
	if err != nil {
		return nil, err
	}
	// multiply before dividing so that e.g. 2000 m -> km is exactly 2
	floats.ScaleTo(out, mf, values)
	for i := range out {
		out[i] /= mt
	}
	return out, nil
}

// sameContext reports whether two contexts resolve code_length identically.
func sameContext(a, b *Context) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.CodeLength == b.CodeLength
}

// Vector is a unit-tagged numeric vector such as a left or right edge.
type Vector struct {
	Value []float64 `json:"value" toml:"value" bson:"value"`
	Unit  Unit      `json:"unit" toml:"unit" bson:"unit"`
}

// NewVector builds a vector from values in unit.
func NewVector(unit Unit, values ...float64) Vector {
	v := make([]float64, len(values))
	copy(v, values)
	return Vector{Value: v, Unit: unit}
}

// Len returns the number of components.
func (v Vector) Len() int { return len(v.Value) }

// Clone returns a deep copy of v.
func (v Vector) Clone() Vector {
	return NewVector(v.Unit, v.Value...)
}

// To converts v to unit. The same context resolves both units.
func (v Vector) To(unit Unit, ctx *Context) (Vector, error) {
	vals, err := Convert(v.Value, v.Unit, ctx, unit, ctx)
	if err != nil {
		return Vector{}, err
	}
	return Vector{Value: vals, Unit: unit}, nil
}

// String formats v as "[a b c] unit".
func (v Vector) String() string {
	return fmt.Sprintf("%v %s", v.Value, v.Unit)
}

// Quantity is a unit-tagged scalar such as a slice width.
type Quantity struct {
	Value float64 `json:"value" toml:"value" bson:"value"`
	Unit  Unit    `json:"unit" toml:"unit" bson:"unit"`
}

// To converts q to unit.
func (q Quantity) To(unit Unit, ctx *Context) (Quantity, error) {
	vals, err := Convert([]float64{q.Value}, q.Unit, ctx, unit, ctx)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: vals[0], Unit: unit}, nil
}
