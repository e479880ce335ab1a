package align

import (
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Mode selects the placement strategy of Compose.
type Mode string

const (
	ModeReference Mode = "reference"
	ModeBounds    Mode = "bounds"
)

// ParseMode validates a mode name. The empty string selects ModeReference.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeReference, nil
	case ModeReference, ModeBounds:
		return Mode(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "mode must be one of (%s, %s), found %q", ModeReference, ModeBounds, s)
}

// Options configures Compose.
type Options struct {
	Mode   Mode
	Policy Policy

	// Unit and Context set the accumulator's working unit in bounds mode.
	Unit    units.Unit
	Context *units.Context

	// SceneCenter, if set, is the bounds-mode translation origin.
	SceneCenter *units.Vector

	// ReferenceIndex, if set, anchors reference mode to that sample and
	// overrides Policy.
	ReferenceIndex *int

	// PromoteSlices promotes 2-D layers to 3-D before placement so they can
	// be aligned with 3-D layers.
	PromoteSlices bool
}

// Composition is the result of Compose.
type Composition struct {
	Layers []layer.Layer

	// Reference and ReferenceIndex are set in reference mode.
	Reference      *domain.ReferenceFrame
	ReferenceIndex int

	// Accumulator is set in bounds mode.
	Accumulator *domain.Accumulator
}

// Compose places a batch of samples on one canvas and strips their domains.
func Compose(samples []layer.Spatial, opts Options) (*Composition, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidState, "nothing to compose")
	}

	if opts.PromoteSlices {
		for _, s := range samples {
			if s.Domain != nil {
				s.Domain.Promote3D()
			}
		}
	}

	switch mode {
	case ModeBounds:
		acc, err := domain.NewAccumulator(opts.Unit, opts.Context)
		if err != nil {
			return nil, err
		}
		b := &BoundsAligner{Acc: acc, ProcessLayers: true}
		if opts.SceneCenter != nil {
			if err := acc.SetSceneCenter(*opts.SceneCenter); err != nil {
				return nil, err
			}
		}
		layers, err := b.AlignBatch(samples)
		if err != nil {
			return nil, err
		}
		return &Composition{Layers: layers, Accumulator: acc}, nil

	default:
		var (
			idx   int
			frame *domain.ReferenceFrame
		)
		if opts.ReferenceIndex != nil {
			idx = *opts.ReferenceIndex
			if idx < 0 || idx >= len(samples) {
				return nil, errors.New(errors.ErrCodeInvalidInput, "reference index %d out of range [0, %d)", idx, len(samples))
			}
			if samples[idx].Domain == nil {
				return nil, errors.New(errors.ErrCodeInvalidInput, "layer %d has no domain", idx)
			}
			frame = domain.NewReferenceFrame(samples[idx].Domain)
		} else {
			idx, frame, err = ChooseReference(samples, policy)
			if err != nil {
				return nil, err
			}
		}
		layers, err := AlignAll(&ReferenceAligner{Frame: frame}, samples)
		if err != nil {
			return nil, err
		}
		return &Composition{Layers: layers, Reference: frame, ReferenceIndex: idx}, nil
	}
}
