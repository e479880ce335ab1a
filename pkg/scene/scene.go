// Package scene builds a composition incrementally, one user action at a
// time, and persists it between actions.
//
// The first layer ever added to a scene fixes its reference frame; every
// later layer is placed against that frame. The scene also folds every
// layer into a bounds accumulator so it can be re-placed in bounds mode at
// any point. Scenes remember what was placed (names, domains, placements
// and data ranges), not the sampled arrays.
//
// Persist scenes with a [Store]:
//
//	store, err := scene.NewFileStore("") // $XDG_CONFIG_HOME/domainstack/scenes
//	sc, err := scene.New("galaxy", units.Kiloparsec)
//	placed, warnings, err := sc.Add(layers)
//	err = store.Put(ctx, sc)
package scene

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Source records where a layer came from.
type Source struct {
	Dataset string          `json:"dataset" bson:"dataset"`
	Kind    selection.Kind  `json:"kind" bson:"kind"`
	Field   selection.Field `json:"field" bson:"field"`
}

// Record is one placed layer.
type Record struct {
	Name   string             `json:"name" bson:"name"`
	Shape  []int              `json:"shape" bson:"shape"`
	Domain *domain.Descriptor `json:"domain" bson:"domain"`
	Source *Source            `json:"source,omitempty" bson:"source,omitempty"`

	// Scale and Translate are nil when the layer needs no placement or
	// could not be placed in the scene's mode.
	Scale     []float64 `json:"scale,omitempty" bson:"scale,omitempty"`
	Translate []float64 `json:"translate,omitempty" bson:"translate,omitempty"`

	DataRange      [2]float64  `json:"data_range" bson:"data_range"`
	IsLog          bool        `json:"is_log" bson:"is_log"`
	ContrastLimits *[2]float64 `json:"contrast_limits,omitempty" bson:"contrast_limits,omitempty"`

	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// Warning reports a recoverable problem with an added layer.
type Warning struct {
	Layer   string
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Layer, w.Message) }

// Scene is an incrementally built composition.
type Scene struct {
	ID        string     `json:"id" bson:"_id"`
	Name      string     `json:"name" bson:"name"`
	Mode      align.Mode `json:"mode" bson:"mode"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`

	Reference *domain.FrameState       `json:"reference,omitempty" bson:"reference,omitempty"`
	Bounds    *domain.AccumulatorState `json:"bounds,omitempty" bson:"bounds,omitempty"`
	Unit      units.Unit               `json:"unit" bson:"unit"`
	Records   []Record                 `json:"layers" bson:"layers"`

	frame *domain.ReferenceFrame
	acc   *domain.Accumulator
}

// New creates an empty reference-mode scene whose bounds are tracked in unit.
func New(name string, unit units.Unit) (*Scene, error) {
	if unit == "" {
		unit = domain.DefaultUnit
	}
	acc, err := domain.NewAccumulator(unit, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Scene{
		ID:        uuid.New().String(),
		Name:      name,
		Mode:      align.ModeReference,
		CreatedAt: now,
		UpdatedAt: now,
		Unit:      unit,
		acc:       acc,
	}, nil
}

// restore rebuilds the frame and accumulator after decoding.
func (s *Scene) restore() error {
	if s.frame == nil && s.Reference != nil {
		s.frame = domain.FrameFromState(*s.Reference)
	}
	if s.acc != nil {
		return nil
	}
	if s.Bounds != nil {
		acc, err := domain.AccumulatorFromState(*s.Bounds)
		if err != nil {
			return err
		}
		s.acc = acc
		return nil
	}
	if s.Unit == "" {
		s.Unit = domain.DefaultUnit
	}
	acc, err := domain.NewAccumulator(s.Unit, nil)
	if err != nil {
		return err
	}
	s.acc = acc
	return nil
}

// Len returns the number of layers in the scene.
func (s *Scene) Len() int { return len(s.Records) }

// Frame returns the scene's reference frame, or nil while the scene is empty.
func (s *Scene) Frame() (*domain.ReferenceFrame, error) {
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s.frame, nil
}

// Accumulator returns the scene's bounds accumulator.
func (s *Scene) Accumulator() (*domain.Accumulator, error) {
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s.acc, nil
}

// Add places samples in the scene and returns them as placed layers, in
// order. User-supplied scale and translate kwargs are dropped with a warning.
// The first layer added to an empty scene becomes its reference.
func (s *Scene) Add(samples []layer.Spatial, sources ...Source) ([]layer.Layer, []Warning, error) {
	if err := s.restore(); err != nil {
		return nil, nil, err
	}
	if len(sources) != 0 && len(sources) != len(samples) {
		return nil, nil, errors.New(errors.ErrCodeInvalidShape, "got %d sources for %d layers", len(sources), len(samples))
	}

	var warnings []Warning
	clean := make([]layer.Spatial, len(samples))
	for i, sm := range samples {
		if sm.Domain == nil {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "layer %d has no domain", i)
		}
		kw := sm.Kwargs.Clone()
		for _, k := range []string{layer.KeyScale, layer.KeyTranslate} {
			if _, ok := kw[k]; ok {
				delete(kw, k)
				warnings = append(warnings, Warning{Layer: kw.Name(), Message: fmt.Sprintf("ignoring user-supplied %s", k)})
			}
		}
		sm.Kwargs = kw
		clean[i] = sm
	}

	// Work on copies; a failing batch leaves the scene untouched.
	frame := s.frame
	if frame == nil && len(clean) > 0 {
		frame = domain.NewReferenceFrame(clean[0].Domain)
	}
	acc := s.acc.Clone()
	recs := slices.Clone(s.Records)

	first := len(recs)
	now := time.Now().UTC()
	for i, sm := range clean {
		if n := acc.NDim(); n == 0 || n == sm.Domain.NDim {
			if err := acc.UpdateFromLayer(sm.Domain, true); err != nil {
				return nil, nil, err
			}
		}
		rec, err := newRecord(sm, now)
		if err != nil {
			return nil, nil, err
		}
		if len(sources) > 0 {
			src := sources[i]
			rec.Source = &src
		}
		recs = append(recs, rec)
	}
	if err := placeRecords(s.Mode, frame, acc, recs); err != nil {
		return nil, nil, err
	}

	if s.frame == nil && frame != nil {
		st := frame.State()
		s.Reference = &st
	}
	s.frame, s.acc, s.Records = frame, acc, recs
	bs := acc.State()
	s.Bounds = &bs
	s.UpdatedAt = now

	out := make([]layer.Layer, len(clean))
	for i, sm := range clean {
		rec := s.Records[first+i]
		out[i] = placed(sm.Layer, rec.Scale, rec.Translate)
	}
	return out, warnings, nil
}

func newRecord(sm layer.Spatial, at time.Time) (Record, error) {
	rec := Record{
		Name:    sm.Kwargs.Name(),
		Shape:   slices.Clone(sm.Data.Shape()),
		Domain:  sm.Domain,
		AddedAt: at,
	}
	if md, ok := sm.Kwargs.Metadata(); ok {
		rec.DataRange = md.DataRange
		rec.IsLog = md.IsLog
		return rec, nil
	}
	lo, hi, err := ndarray.MinMax(sm.Data)
	if err != nil {
		return Record{}, err
	}
	rec.DataRange = [2]float64{lo, hi}
	return rec, nil
}

// SetMode switches the placement strategy and re-places every layer. The
// scene is unchanged when re-placement fails.
func (s *Scene) SetMode(m align.Mode) error {
	mode, err := align.ParseMode(string(m))
	if err != nil {
		return err
	}
	if err := s.restore(); err != nil {
		return err
	}
	recs := slices.Clone(s.Records)
	if err := placeRecords(mode, s.frame, s.acc, recs); err != nil {
		return err
	}
	s.Mode, s.Records = mode, recs
	return nil
}

// placeRecords recomputes the placement of every record in place, against
// frame in reference mode and acc in bounds mode.
func placeRecords(mode align.Mode, frame *domain.ReferenceFrame, acc *domain.Accumulator, recs []Record) error {
	var a align.Aligner
	switch mode {
	case align.ModeBounds:
		a = &align.BoundsAligner{Acc: acc}
	default:
		if frame != nil {
			a = &align.ReferenceAligner{Frame: frame}
		}
	}
	for i := range recs {
		rec := &recs[i]
		rec.Scale, rec.Translate = nil, nil
		if a == nil {
			continue
		}
		l, err := a.Align(layer.Spatial{Layer: layer.Layer{Kwargs: layer.Kwargs{}}, Domain: rec.Domain})
		if err != nil {
			return err
		}
		rec.Scale, _ = l.Kwargs.Scale()
		rec.Translate, _ = l.Kwargs.Translate()
	}
	return nil
}

// Layers returns the scene's records as placed layers over data. data must
// hold one array per record, in record order.
func (s *Scene) Layers(data []ndarray.Array) ([]layer.Layer, error) {
	if len(data) != len(s.Records) {
		return nil, errors.New(errors.ErrCodeInvalidShape, "got %d arrays for %d layers", len(data), len(s.Records))
	}
	out := make([]layer.Layer, len(data))
	for i, rec := range s.Records {
		kw := layer.Kwargs{layer.KeyName: rec.Name}
		if rec.ContrastLimits != nil {
			kw[layer.KeyContrastLimits] = *rec.ContrastLimits
		}
		out[i] = placed(layer.Layer{Data: data[i], Kwargs: kw, Type: layer.TypeImage}, rec.Scale, rec.Translate)
	}
	return out, nil
}

func placed(l layer.Layer, scale, translate []float64) layer.Layer {
	kw := l.Kwargs.Clone()
	if scale != nil {
		kw[layer.KeyScale] = scale
	}
	if translate != nil {
		kw[layer.KeyTranslate] = translate
	}
	return layer.Layer{Data: l.Data, Kwargs: kw, Type: l.Type}
}

// DataRange returns the combined data range of the named layers, or of all
// layers when no names are given.
func (s *Scene) DataRange(names ...string) (lo, hi float64, err error) {
	recs, err := s.lookup(names)
	if err != nil {
		return 0, 0, err
	}
	for i, r := range recs {
		if i == 0 || r.DataRange[0] < lo {
			lo = r.DataRange[0]
		}
		if i == 0 || r.DataRange[1] > hi {
			hi = r.DataRange[1]
		}
	}
	return lo, hi, nil
}

// NormalizeColorLimits sets the contrast limits of the named layers (or all
// layers) to their combined data range.
func (s *Scene) NormalizeColorLimits(names ...string) ([2]float64, error) {
	lo, hi, err := s.DataRange(names...)
	if err != nil {
		return [2]float64{}, err
	}
	limits := [2]float64{lo, hi}
	recs, _ := s.lookup(names)
	for _, r := range recs {
		l := limits
		r.ContrastLimits = &l
	}
	s.UpdatedAt = time.Now().UTC()
	return limits, nil
}

func (s *Scene) lookup(names []string) ([]*Record, error) {
	if len(s.Records) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidState, "scene %s has no layers", s.Name)
	}
	var out []*Record
	if len(names) == 0 {
		for i := range s.Records {
			out = append(out, &s.Records[i])
		}
		return out, nil
	}
	for _, n := range names {
		i := slices.IndexFunc(s.Records, func(r Record) bool { return r.Name == n })
		if i < 0 {
			return nil, errors.New(errors.ErrCodeNotFound, "scene %s has no layer %q", s.Name, n)
		}
		out = append(out, &s.Records[i])
	}
	return out, nil
}

// Reset removes every layer and forgets the reference frame and bounds.
func (s *Scene) Reset() error {
	acc, err := domain.NewAccumulator(s.Unit, nil)
	if err != nil {
		return err
	}
	s.frame, s.acc = nil, acc
	s.Reference, s.Bounds = nil, nil
	s.Records = nil
	s.UpdatedAt = time.Now().UTC()
	return nil
}
