// Package selection describes the spatial windows that layers are sampled
// from: 3-D regions and 2-D slices.
//
// [Region] and [Slice] form a closed sum type behind the [Selection]
// interface. [Equal] compares two selections for grouping purposes: it
// matches on the variant first and then compares every field except the list
// of measured quantities.
package selection

import (
	"slices"

	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Kind names a selection variant.
type Kind string

const (
	KindRegion Kind = "region"
	KindSlice  Kind = "slice"
)

// Default resolutions used when a selection does not set one.
var (
	DefaultRegionResolution = []int{400, 400, 400}
	DefaultSliceResolution  = []int{400, 400}
)

// Field identifies one measured quantity.
type Field struct {
	Type string `json:"field_type" toml:"field_type" bson:"field_type"`
	Name string `json:"field_name" toml:"field_name" bson:"field_name"`

	// TakeLog requests log10 of the sampled values. Nil defers to the
	// dataset's default for the field.
	TakeLog *bool `json:"take_log,omitempty" toml:"take_log,omitempty" bson:"take_log,omitempty"`
}

// ID returns "type:name", which is also the default layer name.
func (f Field) ID() string { return f.Type + ":" + f.Name }

// Validate checks both name components.
func (f Field) Validate() error {
	if err := errors.ValidateFieldName(f.Type); err != nil {
		return err
	}
	return errors.ValidateFieldName(f.Name)
}

// Selection is a Region or a Slice.
type Selection interface {
	Kind() Kind
	FieldList() []Field
	Validate() error

	isSelection()
}

// Region samples a 3-D box. Nil edges default to the dataset's domain.
type Region struct {
	Fields     []Field       `json:"fields" toml:"fields" bson:"fields"`
	LeftEdge   *units.Vector `json:"left_edge,omitempty" toml:"left_edge,omitempty" bson:"left_edge,omitempty"`
	RightEdge  *units.Vector `json:"right_edge,omitempty" toml:"right_edge,omitempty" bson:"right_edge,omitempty"`
	Resolution []int         `json:"resolution,omitempty" toml:"resolution,omitempty" bson:"resolution,omitempty"`
}

func (Region) Kind() Kind           { return KindRegion }
func (r Region) FieldList() []Field { return r.Fields }
func (Region) isSelection()         {}

// SetDefaults fills in the resolution.
func (r *Region) SetDefaults() {
	if len(r.Resolution) == 0 {
		r.Resolution = slices.Clone(DefaultRegionResolution)
	}
}

// Validate checks fields, edges and resolution.
func (r Region) Validate() error {
	if err := validateFields(r.Fields); err != nil {
		return err
	}
	for name, e := range map[string]*units.Vector{"left_edge": r.LeftEdge, "right_edge": r.RightEdge} {
		if e == nil {
			continue
		}
		if e.Len() != 3 {
			return errors.New(errors.ErrCodeInvalidSelection, "region %s must have 3 components, got %d", name, e.Len())
		}
		if _, err := units.Parse(string(e.Unit)); err != nil {
			return err
		}
	}
	return validateResolution(r.Resolution, 3)
}

// Slice samples a plane perpendicular to an axis. Nil center, width and
// height default to the dataset's domain.
type Slice struct {
	Fields     []Field         `json:"fields" toml:"fields" bson:"fields"`
	Normal     string          `json:"normal" toml:"normal" bson:"normal"`
	Center     *units.Vector   `json:"center,omitempty" toml:"center,omitempty" bson:"center,omitempty"`
	Width      *units.Quantity `json:"slice_width,omitempty" toml:"slice_width,omitempty" bson:"slice_width,omitempty"`
	Height     *units.Quantity `json:"slice_height,omitempty" toml:"slice_height,omitempty" bson:"slice_height,omitempty"`
	Resolution []int           `json:"resolution,omitempty" toml:"resolution,omitempty" bson:"resolution,omitempty"`
	Periodic   bool            `json:"periodic,omitempty" toml:"periodic,omitempty" bson:"periodic,omitempty"`
}

func (Slice) Kind() Kind           { return KindSlice }
func (s Slice) FieldList() []Field { return s.Fields }
func (Slice) isSelection()         {}

// SetDefaults fills in the resolution.
func (s *Slice) SetDefaults() {
	if len(s.Resolution) == 0 {
		s.Resolution = slices.Clone(DefaultSliceResolution)
	}
}

// Validate checks fields, normal, center, extents and resolution.
func (s Slice) Validate() error {
	if err := validateFields(s.Fields); err != nil {
		return err
	}
	if _, err := NormalAxis(s.Normal); err != nil {
		return err
	}
	if s.Center != nil {
		if s.Center.Len() != 3 {
			return errors.New(errors.ErrCodeInvalidSelection, "slice center must have 3 components, got %d", s.Center.Len())
		}
		if _, err := units.Parse(string(s.Center.Unit)); err != nil {
			return err
		}
	}
	for name, q := range map[string]*units.Quantity{"slice_width": s.Width, "slice_height": s.Height} {
		if q == nil {
			continue
		}
		if q.Value <= 0 {
			return errors.New(errors.ErrCodeInvalidSelection, "%s must be positive, got %g", name, q.Value)
		}
		if _, err := units.Parse(string(q.Unit)); err != nil {
			return err
		}
	}
	return validateResolution(s.Resolution, 2)
}

// NormalAxis returns the axis index (0, 1, 2) of a slice normal.
func NormalAxis(normal string) (int, error) {
	switch normal {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidSelection, "slice normal must be one of x, y, z, got %q", normal)
}

// ImageAxes returns the in-plane axes of a slice with the given normal axis,
// in image (horizontal, vertical) order.
func ImageAxes(normal int) (int, int) {
	switch normal {
	case 0:
		return 1, 2
	case 1:
		return 2, 0
	}
	return 0, 1
}

// Selections groups regions and slices as they appear in a description.
type Selections struct {
	Regions []Region `json:"regions,omitempty" toml:"regions,omitempty" bson:"regions,omitempty"`
	Slices  []Slice  `json:"slices,omitempty" toml:"slices,omitempty" bson:"slices,omitempty"`
}

// All returns regions followed by slices.
func (s Selections) All() []Selection {
	out := make([]Selection, 0, len(s.Regions)+len(s.Slices))
	for _, r := range s.Regions {
		out = append(out, r)
	}
	for _, sl := range s.Slices {
		out = append(out, sl)
	}
	return out
}

// Len returns the number of selections.
func (s Selections) Len() int { return len(s.Regions) + len(s.Slices) }

func validateFields(fields []Field) error {
	if len(fields) == 0 {
		return errors.New(errors.ErrCodeInvalidSelection, "selection must name at least one field")
	}
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateResolution(res []int, n int) error {
	if len(res) == 0 {
		return nil
	}
	if len(res) != 1 && len(res) != n {
		return errors.New(errors.ErrCodeInvalidShape, "resolution must have 1 or %d components, got %d", n, len(res))
	}
	for _, r := range res {
		if r <= 0 {
			return errors.New(errors.ErrCodeInvalidShape, "resolution must be positive, got %v", res)
		}
	}
	return nil
}
