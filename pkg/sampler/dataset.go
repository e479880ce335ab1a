package sampler

import (
	"math"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/units"
)

// Profile shapes.
const (
	ProfileGaussian = "gaussian"
	ProfileRadial   = "radial"
	ProfileLinear   = "linear"
	ProfileConstant = "constant"
)

// Profile is an analytic field. Positions are evaluated in box coordinates,
// where the dataset's domain spans [0, 1] on every axis.
type Profile struct {
	Type  string `toml:"field_type"`
	Name  string `toml:"field_name"`
	Shape string `toml:"profile"`

	Amplitude float64   `toml:"amplitude"`
	Offset    float64   `toml:"offset"`
	Width     float64   `toml:"width"`
	Center    []float64 `toml:"center"`
	Axis      string    `toml:"axis"`

	// Growth scales the amplitude by (1 + Growth*time).
	Growth float64 `toml:"growth"`

	// TakeLog is the default when a selection does not say.
	TakeLog bool `toml:"take_log"`
}

// Field returns the (type, name) pair of p.
func (p Profile) Field() selection.Field {
	return selection.Field{Type: p.Type, Name: p.Name}
}

func (p *Profile) setDefaults() {
	if p.Shape == "" {
		p.Shape = ProfileGaussian
	}
	if p.Amplitude == 0 {
		p.Amplitude = 1
	}
	if p.Width == 0 {
		p.Width = 0.25
	}
	if len(p.Center) == 0 {
		p.Center = []float64{0.5, 0.5, 0.5}
	}
	if p.Axis == "" {
		p.Axis = "x"
	}
}

func (p Profile) validate() error {
	if err := p.Field().Validate(); err != nil {
		return err
	}
	switch p.Shape {
	case ProfileGaussian, ProfileRadial, ProfileLinear, ProfileConstant:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "field %s: unknown profile %q", p.Field().ID(), p.Shape)
	}
	if len(p.Center) != 3 {
		return errors.New(errors.ErrCodeInvalidShape, "field %s: center must have 3 components, got %d", p.Field().ID(), len(p.Center))
	}
	if p.Width <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "field %s: width must be positive", p.Field().ID())
	}
	if _, err := selection.NormalAxis(p.Axis); err != nil {
		return err
	}
	return nil
}

// eval returns the field value at box coordinates u and time t.
func (p Profile) eval(u [3]float64, t float64) float64 {
	amp := p.Amplitude * (1 + p.Growth*t)
	switch p.Shape {
	case ProfileConstant:
		return amp + p.Offset
	case ProfileLinear:
		ax, _ := selection.NormalAxis(p.Axis)
		return amp*u[ax] + p.Offset
	}
	var r2 float64
	for i := range u {
		d := u[i] - p.Center[i]
		r2 += d * d
	}
	if p.Shape == ProfileRadial {
		return amp/(math.Sqrt(r2)+p.Width) + p.Offset
	}
	return amp*math.Exp(-r2/(2*p.Width*p.Width)) + p.Offset
}

// Dataset is a parsed analytic dataset.
type Dataset struct {
	Name string
	Path string

	// Hash is the content hash of the file the dataset was read from.
	Hash string

	Time      float64
	LeftEdge  units.Vector
	RightEdge units.Vector

	// Context resolves code_length for this dataset. Nil when the file does
	// not declare a code length.
	Context *units.Context

	Profiles []Profile
}

type datasetFile struct {
	Name       string  `toml:"name"`
	Time       float64 `toml:"time"`
	LengthUnit string  `toml:"length_unit"`
	CodeLength float64 `toml:"code_length"`
	Domain     struct {
		LeftEdge  units.Vector `toml:"left_edge"`
		RightEdge units.Vector `toml:"right_edge"`
	} `toml:"domain"`
	Fields []Profile `toml:"fields"`
}

// ReadDataset reads and parses the dataset file at path.
func ReadDataset(path string) (*Dataset, []string, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "dataset %s", path)
		}
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read dataset %s", path)
	}
	return ParseDataset(path, data)
}

// ParseDataset parses dataset TOML. It also returns the keys it did not
// recognize so callers can warn about them.
func ParseDataset(path string, data []byte) (*Dataset, []string, error) {
	var f datasetFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse dataset %s", path)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}

	ds := &Dataset{
		Name:      f.Name,
		Path:      path,
		Hash:      cache.Hash(data),
		Time:      f.Time,
		LeftEdge:  f.Domain.LeftEdge,
		RightEdge: f.Domain.RightEdge,
	}
	if ds.Name == "" {
		ds.Name = path
	}
	if f.CodeLength != 0 {
		lu, err := units.Parse(f.LengthUnit)
		if err != nil {
			return nil, nil, err
		}
		if ds.Context, err = units.NewContext(ds.Name, f.CodeLength, lu); err != nil {
			return nil, nil, err
		}
	}

	if ds.LeftEdge.Len() != 3 || ds.RightEdge.Len() != 3 {
		return nil, nil, errors.New(errors.ErrCodeInvalidShape, "dataset %s: domain edges must have 3 components", path)
	}
	if _, err := units.Parse(string(ds.LeftEdge.Unit)); err != nil {
		return nil, nil, err
	}
	// the box is kept in the left edge's unit
	if ds.RightEdge, err = ds.RightEdge.To(ds.LeftEdge.Unit, ds.Context); err != nil {
		return nil, nil, err
	}
	for i := range 3 {
		if ds.RightEdge.Value[i] <= ds.LeftEdge.Value[i] {
			return nil, nil, errors.New(errors.ErrCodeInvalidShape, "dataset %s: empty domain on axis %d", path, i)
		}
	}

	if len(f.Fields) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "dataset %s declares no fields", path)
	}
	for i := range f.Fields {
		f.Fields[i].setDefaults()
		if err := f.Fields[i].validate(); err != nil {
			return nil, nil, err
		}
	}
	ds.Profiles = f.Fields
	return ds, unknown, nil
}

// Unit returns the unit the dataset's box is expressed in.
func (ds *Dataset) Unit() units.Unit { return ds.LeftEdge.Unit }

// Profile returns the profile for f.
func (ds *Dataset) Profile(f selection.Field) (Profile, error) {
	for _, p := range ds.Profiles {
		if p.Type == f.Type && p.Name == f.Name {
			return p, nil
		}
	}
	return Profile{}, errors.New(errors.ErrCodeNotFound, "dataset %s has no field %s", ds.Name, f.ID())
}

// Center returns the center of the box.
func (ds *Dataset) Center() units.Vector {
	c := make([]float64, 3)
	for i := range c {
		c[i] = (ds.LeftEdge.Value[i] + ds.RightEdge.Value[i]) / 2
	}
	return units.NewVector(ds.Unit(), c...)
}

// TakeLog resolves whether f is log10'd when sampled.
func (ds *Dataset) TakeLog(f selection.Field) (bool, error) {
	p, err := ds.Profile(f)
	if err != nil {
		return false, err
	}
	if f.TakeLog != nil {
		return *f.TakeLog, nil
	}
	return p.TakeLog, nil
}
