// Package align places sampled layers on a shared canvas.
//
// Two strategies implement [Aligner]:
//
//   - [ReferenceAligner] anchors every layer to one chosen layer's geometry.
//     It is used for single-batch composition.
//   - [BoundsAligner] anchors every layer to the union bounding box and the
//     finest grid width of all layers. It is used when a scene is built up
//     incrementally.
//
// Both write "scale" and "translate" display keys only when they differ from
// the identity, and both pass through layers whose dimensionality does not
// match their anchor.
package align

import (
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
)

// Aligner computes the placement of one layer.
type Aligner interface {
	// Align returns the layer with placement written into its kwargs. The
	// domain is dropped from the result.
	Align(s layer.Spatial) (layer.Layer, error)
}

// AlignAll applies a to each sample in order.
func AlignAll(a Aligner, samples []layer.Spatial) ([]layer.Layer, error) {
	out := make([]layer.Layer, 0, len(samples))
	for i, s := range samples {
		l, err := a.Align(s)
		if err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.ErrCodeInternal
			}
			return nil, errors.Wrap(code, err, "align layer %d (%s)", i, s.Kwargs.Name())
		}
		out = append(out, l)
	}
	return out, nil
}

// ReferenceAligner places layers relative to a ReferenceFrame.
type ReferenceAligner struct {
	Frame *domain.ReferenceFrame
}

// NewReferenceAligner anchors placement to d.
func NewReferenceAligner(d *domain.Descriptor) *ReferenceAligner {
	return &ReferenceAligner{Frame: domain.NewReferenceFrame(d)}
}

// Align implements Aligner. Existing metadata is copied into the result and
// the copy is tagged with the frame.
func (r *ReferenceAligner) Align(s layer.Spatial) (layer.Layer, error) {
	if s.Domain == nil {
		return layer.Layer{}, errors.New(errors.ErrCodeInvalidInput, "layer has no domain")
	}
	if s.Domain.NDim != r.Frame.NDim() {
		return s.Layer, nil
	}
	scale, err := r.Frame.CalculateScale(s.Domain)
	if err != nil {
		return layer.Layer{}, err
	}
	translate, err := r.Frame.CalculateTranslation(s.Domain)
	if err != nil {
		return layer.Layer{}, err
	}
	out := place(s.Layer, scale, translate)
	if md, ok := out.Kwargs.Metadata(); ok {
		tagged := *md
		tagged.ReferenceLayer = r.Frame
		out.Kwargs[layer.KeyMetadata] = &tagged
	}
	return out, nil
}

// BoundsAligner places layers relative to an Accumulator.
type BoundsAligner struct {
	Acc *domain.Accumulator

	// ProcessLayers makes AlignBatch fold the batch into Acc before
	// aligning it.
	ProcessLayers bool
}

// Align implements Aligner. It fails with INVALID_STATE until at least one
// layer has been folded into the accumulator.
func (b *BoundsAligner) Align(s layer.Spatial) (layer.Layer, error) {
	if s.Domain == nil {
		return layer.Layer{}, errors.New(errors.ErrCodeInvalidInput, "layer has no domain")
	}
	if n := b.Acc.NDim(); n != 0 && s.Domain.NDim != n {
		return s.Layer, nil
	}
	scale, err := b.Acc.CalculateScale(s.Domain)
	if err != nil {
		return layer.Layer{}, err
	}
	translate, err := b.Acc.CalculateTranslation(s.Domain)
	if err != nil {
		return layer.Layer{}, err
	}
	return place(s.Layer, scale, translate), nil
}

// AlignBatch aligns samples, first folding them into the accumulator when
// ProcessLayers is set. Only samples matching the first sample's
// dimensionality are accumulated.
func (b *BoundsAligner) AlignBatch(samples []layer.Spatial) ([]layer.Layer, error) {
	if b.ProcessLayers && len(samples) > 0 {
		ndim := b.Acc.NDim()
		for i, s := range samples {
			if s.Domain == nil {
				return nil, errors.New(errors.ErrCodeInvalidInput, "layer %d has no domain", i)
			}
			if ndim == 0 {
				ndim = s.Domain.NDim
			}
			if s.Domain.NDim != ndim {
				continue
			}
			if err := b.Acc.UpdateFromLayer(s.Domain, false); err != nil {
				return nil, err
			}
		}
		if err := b.Acc.Finalize(); err != nil {
			return nil, err
		}
	}
	return AlignAll(b, samples)
}

// place writes non-trivial scale and translation into a copy of l's kwargs.
func place(l layer.Layer, scale, translate []float64) layer.Layer {
	kw := l.Kwargs.Clone()
	if !allEqual(scale, 1) {
		kw[layer.KeyScale] = scale
	}
	if !allEqual(translate, 0) {
		kw[layer.KeyTranslate] = translate
	}
	return layer.Layer{Data: l.Data, Kwargs: kw, Type: l.Type}
}

func allEqual(v []float64, x float64) bool {
	for _, e := range v {
		if e != x {
			return false
		}
	}
	return true
}
