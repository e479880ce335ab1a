package cache

import "github.com/matzehuels/domainstack/pkg/selection"

// ScopedKeyer prefixes every key of an inner Keyer. The HTTP server scopes
// keys per deployment so that several servers can share one Redis instance.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "domainstack:v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer selects
// the default.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SampleKey generates a prefixed sample key.
func (k *ScopedKeyer) SampleKey(dataset string, sel selection.Selection, field selection.Field) string {
	return k.prefix + k.inner.SampleKey(dataset, sel, field)
}

// CompositionKey generates a prefixed composition key.
func (k *ScopedKeyer) CompositionKey(descriptionHash string, opts CompositionKeyOpts) string {
	return k.prefix + k.inner.CompositionKey(descriptionHash, opts)
}
