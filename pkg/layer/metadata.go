package layer

import (
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/ndarray"
)

// Metadata is stored under the "metadata" display key.
type Metadata struct {
	// DataRange is the (min, max) of the layer's values.
	DataRange [2]float64 `json:"data_range"`

	// LayerDomain is the geometry the layer was sampled from.
	LayerDomain *domain.Descriptor `json:"layer_domain,omitempty"`

	// IsLog is true when the values were log10'd at sampling time.
	IsLog bool `json:"is_log"`

	// ReferenceLayer is the frame the layer was placed against, or nil.
	ReferenceLayer *domain.ReferenceFrame `json:"-"`

	// Extra carries caller-defined keys.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewMetadata builds metadata for data. Computing the range materializes lazy
// arrays.
func NewMetadata(data ndarray.Array, d *domain.Descriptor, isLog bool, ref *domain.ReferenceFrame, extra map[string]any) (*Metadata, error) {
	lo, hi, err := ndarray.MinMax(data)
	if err != nil {
		return nil, err
	}
	md := &Metadata{
		DataRange:      [2]float64{lo, hi},
		LayerDomain:    d,
		IsLog:          isLog,
		ReferenceLayer: ref,
	}
	if len(extra) > 0 {
		md.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			md.Extra[k] = v
		}
	}
	return md, nil
}

// DataRange returns the smallest minimum and largest maximum across layers.
// A layer's metadata range is used when present; otherwise its data is
// scanned.
func DataRange(layers ...Layer) (lo, hi float64, err error) {
	if len(layers) == 0 {
		return 0, 0, errors.New(errors.ErrCodeInvalidState, "no layers to take a data range of")
	}
	for i, l := range layers {
		var lmin, lmax float64
		if md, ok := l.Kwargs.Metadata(); ok {
			lmin, lmax = md.DataRange[0], md.DataRange[1]
		} else if lmin, lmax, err = ndarray.MinMax(l.Data); err != nil {
			return 0, 0, err
		}
		if i == 0 || lmin < lo {
			lo = lmin
		}
		if i == 0 || lmax > hi {
			hi = lmax
		}
	}
	return lo, hi, nil
}

// LinearRescale maps data onto [0, 1] using its own range.
func LinearRescale(data ndarray.Array) (ndarray.Array, error) {
	lo, hi, err := ndarray.MinMax(data)
	if err != nil {
		return nil, err
	}
	return ndarray.Rescale(data, lo, hi)
}
