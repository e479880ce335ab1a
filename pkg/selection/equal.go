package selection

import (
	"slices"

	"github.com/matzehuels/domainstack/pkg/units"
)

// Equal reports whether a and b describe the same window: the same variant
// with every field other than the field list equal.
func Equal(a, b Selection) bool {
	switch x := a.(type) {
	case Region:
		y, ok := b.(Region)
		return ok &&
			vectorEqual(x.LeftEdge, y.LeftEdge) &&
			vectorEqual(x.RightEdge, y.RightEdge) &&
			slices.Equal(x.Resolution, y.Resolution)
	case Slice:
		y, ok := b.(Slice)
		return ok &&
			x.Normal == y.Normal &&
			vectorEqual(x.Center, y.Center) &&
			quantityEqual(x.Width, y.Width) &&
			quantityEqual(x.Height, y.Height) &&
			slices.Equal(x.Resolution, y.Resolution) &&
			x.Periodic == y.Periodic
	}
	return false
}

func vectorEqual(a, b *units.Vector) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Unit == b.Unit && slices.Equal(a.Value, b.Value)
}

func quantityEqual(a, b *units.Quantity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
