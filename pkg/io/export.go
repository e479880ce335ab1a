package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/layer"
)

// Export is the serializable result of a composition.
type Export struct {
	Mode      align.Mode               `json:"mode"`
	Reference *ReferenceInfo           `json:"reference,omitempty"`
	Bounds    *domain.AccumulatorState `json:"bounds,omitempty"`
	Layers    []Placement              `json:"layers"`
}

// ReferenceInfo identifies the layer every other layer was placed against.
type ReferenceInfo struct {
	Index int               `json:"index"`
	Name  string            `json:"name"`
	Frame domain.FrameState `json:"frame"`
}

// Placement is the display placement of one layer.
type Placement struct {
	Name      string     `json:"name"`
	Type      layer.Type `json:"type"`
	Shape     []int      `json:"shape"`
	Scale     []float64  `json:"scale,omitempty"`
	Translate []float64  `json:"translate,omitempty"`

	DataRange      *[2]float64 `json:"data_range,omitempty"`
	IsLog          bool        `json:"is_log,omitempty"`
	ContrastLimits *[2]float64 `json:"contrast_limits,omitempty"`
}

// NewExport describes layers placed by c in mode. layers may differ from
// c.Layers when timeseries stacks were appended after composition.
func NewExport(mode align.Mode, c *align.Composition, layers []layer.Layer) Export {
	e := Export{Mode: mode, Layers: Placements(layers)}
	if c == nil {
		return e
	}
	if c.Reference != nil {
		e.Reference = &ReferenceInfo{Index: c.ReferenceIndex, Frame: c.Reference.State()}
		if c.ReferenceIndex < len(c.Layers) {
			e.Reference.Name = c.Layers[c.ReferenceIndex].Kwargs.Name()
		}
	}
	if c.Accumulator != nil {
		st := c.Accumulator.State()
		e.Bounds = &st
	}
	return e
}

// Placements extracts the placement of each layer.
func Placements(layers []layer.Layer) []Placement {
	out := make([]Placement, len(layers))
	for i, l := range layers {
		p := Placement{
			Name:  l.Kwargs.Name(),
			Type:  l.Type,
			Shape: slices.Clone(l.Data.Shape()),
		}
		p.Scale, _ = l.Kwargs.Scale()
		p.Translate, _ = l.Kwargs.Translate()
		if md, ok := l.Kwargs.Metadata(); ok {
			r := md.DataRange
			p.DataRange = &r
			p.IsLog = md.IsLog
		}
		if cl, ok := l.Kwargs.ContrastLimits(); ok {
			p.ContrastLimits = &cl
		}
		out[i] = p
	}
	return out
}

// WriteExport encodes e as indented JSON.
func WriteExport(e Export, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadExport decodes an export written by WriteExport.
func ReadExport(r io.Reader) (Export, error) {
	var e Export
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return Export{}, fmt.Errorf("decode: %w", err)
	}
	return e, nil
}

// ExportJSON writes e to the file at path.
func ExportJSON(e Export, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteExport(e, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
