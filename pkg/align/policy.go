package align

import (
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Policy selects which layer anchors reference-mode placement.
type Policy string

const (
	// PolicyFirstInList anchors to the first layer.
	PolicyFirstInList Policy = "first_in_list"

	// PolicySmallestVolume anchors to the layer with the smallest product of
	// widths, so that no layer is shrunk below one anchor pixel.
	PolicySmallestVolume Policy = "smallest_volume"
)

// Policies lists every valid policy.
var Policies = []Policy{PolicyFirstInList, PolicySmallestVolume}

// ParsePolicy validates a policy name. The empty string selects
// PolicyFirstInList.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyFirstInList, nil
	case PolicyFirstInList, PolicySmallestVolume:
		return Policy(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidPolicy, "method must be one of (%s, %s), found %q", PolicyFirstInList, PolicySmallestVolume, s)
}

// ChooseReference returns the index of the anchoring sample and a frame built
// from its domain. Volumes are compared in meters; ties keep the earliest.
func ChooseReference(samples []layer.Spatial, p Policy) (int, *domain.ReferenceFrame, error) {
	if _, err := ParsePolicy(string(p)); err != nil {
		return 0, nil, err
	}
	if len(samples) == 0 {
		return 0, nil, errors.New(errors.ErrCodeInvalidState, "cannot choose a reference from an empty batch")
	}
	for i, s := range samples {
		if s.Domain == nil {
			return 0, nil, errors.New(errors.ErrCodeInvalidInput, "layer %d has no domain", i)
		}
	}

	idx := 0
	if p == PolicySmallestVolume {
		minVol := 0.0
		for i, s := range samples {
			vol, err := s.Domain.VolumeIn(units.Meter)
			if err != nil {
				return 0, nil, err
			}
			if i == 0 || vol < minVol {
				minVol, idx = vol, i
			}
		}
	}
	return idx, domain.NewReferenceFrame(samples[idx].Domain), nil
}
