// Package layer defines the layer tuples that flow through placement: a
// sampled array, its display keyword arguments and a type tag, optionally
// paired with the geometry it was sampled from.
package layer

import (
	"maps"

	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/ndarray"
)

// Type tags how a layer is displayed.
type Type string

// TypeImage is the tag of every sampled layer.
const TypeImage Type = "image"

// Display keyword keys written by this module. Other keys are passed through
// untouched.
const (
	KeyName           = "name"
	KeyScale          = "scale"
	KeyTranslate      = "translate"
	KeyMetadata       = "metadata"
	KeyContrastLimits = "contrast_limits"
)

// Kwargs holds display keyword arguments.
type Kwargs map[string]any

// Clone returns a shallow copy of k.
func (k Kwargs) Clone() Kwargs {
	if k == nil {
		return Kwargs{}
	}
	return maps.Clone(k)
}

// Name returns the layer name, or "".
func (k Kwargs) Name() string {
	s, _ := k[KeyName].(string)
	return s
}

// Scale returns the per-axis scale if one was written.
func (k Kwargs) Scale() ([]float64, bool) {
	v, ok := k[KeyScale].([]float64)
	return v, ok
}

// Translate returns the per-axis translation if one was written.
func (k Kwargs) Translate() ([]float64, bool) {
	v, ok := k[KeyTranslate].([]float64)
	return v, ok
}

// Metadata returns the layer metadata if present.
func (k Kwargs) Metadata() (*Metadata, bool) {
	md, ok := k[KeyMetadata].(*Metadata)
	return md, ok && md != nil
}

// ContrastLimits returns the display value range if one was set.
func (k Kwargs) ContrastLimits() ([2]float64, bool) {
	v, ok := k[KeyContrastLimits].([2]float64)
	return v, ok
}

// Layer is an (array, kwargs, type) triple ready for display.
type Layer struct {
	Data   ndarray.Array
	Kwargs Kwargs
	Type   Type
}

// Spatial is a Layer together with the domain it was sampled from.
type Spatial struct {
	Layer
	Domain *domain.Descriptor
}

// NewSpatial returns an image layer named name.
func NewSpatial(data ndarray.Array, d *domain.Descriptor, name string) Spatial {
	return Spatial{
		Layer: Layer{
			Data:   data,
			Kwargs: Kwargs{KeyName: name},
			Type:   TypeImage,
		},
		Domain: d,
	}
}
