package cache

import (
	"github.com/matzehuels/domainstack/pkg/selection"
)

// Keyer derives cache keys.
type Keyer interface {
	// SampleKey identifies one sampled array.
	SampleKey(dataset string, sel selection.Selection, field selection.Field) string

	// CompositionKey identifies the placement of a whole description.
	CompositionKey(descriptionHash string, opts CompositionKeyOpts) string
}

// CompositionKeyOpts are the options that change a composition's result.
type CompositionKeyOpts struct {
	Mode          string `json:"mode"`
	Policy        string `json:"policy"`
	Unit          string `json:"unit"`
	PromoteSlices bool   `json:"promote_slices"`
	SceneCenter   string `json:"scene_center,omitempty"`
	Reference     *int   `json:"reference,omitempty"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SampleKey implements Keyer. The field's take_log flag is part of the key
// because it changes the sampled values.
func (DefaultKeyer) SampleKey(dataset string, sel selection.Selection, field selection.Field) string {
	return hashKey("sample", dataset, sel.Kind(), sel, field)
}

// CompositionKey implements Keyer.
func (DefaultKeyer) CompositionKey(descriptionHash string, opts CompositionKeyOpts) string {
	return hashKey("composition", descriptionHash, opts)
}

var _ Keyer = DefaultKeyer{}
