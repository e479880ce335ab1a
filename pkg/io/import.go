package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/timeseries"
)

// Format is a description encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the format for a file name by extension. Anything other
// than .toml is read as JSON.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// Description is a parsed composition description.
type Description struct {
	Datasets   []DatasetEntry    `json:"datasets,omitempty" toml:"datasets,omitempty"`
	Timeseries []TimeseriesEntry `json:"timeseries,omitempty" toml:"timeseries,omitempty"`
}

// DatasetEntry samples one dataset file.
type DatasetEntry struct {
	Filename   string               `json:"filename" toml:"filename"`
	Selections selection.Selections `json:"selections" toml:"selections"`
}

// TimeseriesEntry samples the same selections from several dataset files.
type TimeseriesEntry struct {
	FileSelection timeseries.FileSelection `json:"file_selection" toml:"file_selection"`
	Selections    selection.Selections     `json:"selections" toml:"selections"`

	// LoadAsStack stacks the samples of each selection and field into one
	// layer with a leading time axis.
	LoadAsStack bool `json:"load_as_stack,omitempty" toml:"load_as_stack,omitempty"`
}

// SetDefaults fills in default resolutions for every selection.
func (d *Description) SetDefaults() {
	for i := range d.Datasets {
		setSelectionDefaults(&d.Datasets[i].Selections)
	}
	for i := range d.Timeseries {
		setSelectionDefaults(&d.Timeseries[i].Selections)
	}
}

func setSelectionDefaults(s *selection.Selections) {
	for i := range s.Regions {
		s.Regions[i].SetDefaults()
	}
	for i := range s.Slices {
		s.Slices[i].SetDefaults()
	}
}

// Validate checks every entry.
func (d *Description) Validate() error {
	if len(d.Datasets) == 0 && len(d.Timeseries) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "description has no datasets or timeseries")
	}
	for i, ds := range d.Datasets {
		if err := errors.ValidatePath(ds.Filename); err != nil {
			return fmt.Errorf("datasets[%d]: %w", i, err)
		}
		if err := validateSelections(ds.Selections); err != nil {
			return fmt.Errorf("datasets[%d] %s: %w", i, ds.Filename, err)
		}
	}
	for i, ts := range d.Timeseries {
		if err := ts.FileSelection.Validate(); err != nil {
			return fmt.Errorf("timeseries[%d]: %w", i, err)
		}
		if err := validateSelections(ts.Selections); err != nil {
			return fmt.Errorf("timeseries[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSelections(s selection.Selections) error {
	if s.Len() == 0 {
		return errors.New(errors.ErrCodeInvalidSelection, "no selections")
	}
	for _, sel := range s.All() {
		if err := sel.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve makes relative dataset paths and timeseries directories relative
// to dir.
func (d *Description) Resolve(dir string) {
	if dir == "" {
		return
	}
	for i := range d.Datasets {
		if f := d.Datasets[i].Filename; f != "" && !filepath.IsAbs(f) {
			d.Datasets[i].Filename = filepath.Join(dir, f)
		}
	}
	for i := range d.Timeseries {
		fs := &d.Timeseries[i].FileSelection
		if !filepath.IsAbs(fs.Directory) {
			fs.Directory = filepath.Join(dir, fs.Directory)
		}
	}
}

// Within checks that every dataset path and timeseries directory or file
// of d lies inside root. Call it after Resolve.
func (d *Description) Within(root string) error {
	for i, ds := range d.Datasets {
		if err := errors.ValidateWithin(root, ds.Filename); err != nil {
			return fmt.Errorf("datasets[%d]: %w", i, err)
		}
	}
	for i, ts := range d.Timeseries {
		fs := ts.FileSelection
		if err := errors.ValidateWithin(root, fs.Directory); err != nil {
			return fmt.Errorf("timeseries[%d]: %w", i, err)
		}
		for _, f := range fs.List {
			if !filepath.IsAbs(f) {
				f = filepath.Join(fs.Directory, f)
			}
			if err := errors.ValidateWithin(root, f); err != nil {
				return fmt.Errorf("timeseries[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Samples returns the number of selections in the description, counting
// each timeseries selection once.
func (d *Description) Samples() int {
	n := 0
	for _, ds := range d.Datasets {
		n += ds.Selections.Len()
	}
	for _, ts := range d.Timeseries {
		n += ts.Selections.Len()
	}
	return n
}

// Hash returns a content hash of the description's canonical JSON form.
func (d *Description) Hash() (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(d); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return cache.Hash(buf.Bytes()), nil
}

// ReadDescription decodes a description from r, applies defaults and
// validates it. ReadDescription does not close r.
func ReadDescription(r io.Reader, format Format) (*Description, error) {
	var d Description
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&d)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode toml description")
		}
		if und := md.Undecoded(); len(und) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "unknown description key %q", und[0].String())
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode json description")
		}
	}
	d.SetDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ImportDescription reads the description file at path and resolves its
// relative paths against the file's directory.
func ImportDescription(path string) (*Description, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "description %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := ReadDescription(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Resolve(filepath.Dir(path))
	return d, nil
}
