package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/units"
)

const descJSON = `{
  "datasets": [
    {
      "filename": "box.toml",
      "selections": {
        "regions": [{
          "fields": [{"field_type": "gas", "field_name": "density"}],
          "left_edge": {"value": [0, 0, 0], "unit": "kpc"},
          "right_edge": {"value": [1, 1, 1], "unit": "kpc"}
        }],
        "slices": [{
          "fields": [{"field_type": "gas", "field_name": "temperature", "take_log": true}],
          "normal": "z",
          "slice_width": {"value": 10, "unit": "kpc"},
          "resolution": [32, 16]
        }]
      }
    }
  ],
  "timeseries": [
    {
      "file_selection": {"directory": "outputs", "file_pattern": "snap_*.toml", "file_range": [0, 10, 2]},
      "selections": {"slices": [{"fields": [{"field_type": "gas", "field_name": "density"}], "normal": "x"}]},
      "load_as_stack": true
    }
  ]
}`

const descTOML = `
[[datasets]]
filename = "box.toml"

[[datasets.selections.regions]]
fields = [{ field_type = "gas", field_name = "density" }]
left_edge = { value = [0.0, 0.0, 0.0], unit = "kpc" }
right_edge = { value = [1.0, 1.0, 1.0], unit = "kpc" }

[[datasets.selections.slices]]
fields = [{ field_type = "gas", field_name = "temperature", take_log = true }]
normal = "z"
slice_width = { value = 10.0, unit = "kpc" }
resolution = [32, 16]

[[timeseries]]
load_as_stack = true
file_selection = { directory = "outputs", file_pattern = "snap_*.toml", file_range = [0, 10, 2] }

[[timeseries.selections.slices]]
fields = [{ field_type = "gas", field_name = "density" }]
normal = "x"
`

func TestReadDescriptionFormats(t *testing.T) {
	fromJSON, err := ReadDescription(strings.NewReader(descJSON), FormatJSON)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	fromTOML, err := ReadDescription(strings.NewReader(descTOML), FormatTOML)
	if err != nil {
		t.Fatalf("toml: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromTOML); diff != "" {
		t.Errorf("json and toml descriptions differ (-json +toml):\n%s", diff)
	}

	d := fromJSON
	if got := d.Datasets[0].Selections.Regions[0].Resolution; !cmp.Equal(got, selection.DefaultRegionResolution) {
		t.Errorf("region resolution default = %v", got)
	}
	if got := d.Timeseries[0].Selections.Slices[0].Resolution; !cmp.Equal(got, selection.DefaultSliceResolution) {
		t.Errorf("slice resolution default = %v", got)
	}
	if tl := d.Datasets[0].Selections.Slices[0].Fields[0].TakeLog; tl == nil || !*tl {
		t.Error("take_log not decoded")
	}
	if !d.Timeseries[0].LoadAsStack {
		t.Error("load_as_stack not decoded")
	}
	if d.Samples() != 3 {
		t.Errorf("Samples() = %d, want 3", d.Samples())
	}
}

func TestReadDescriptionErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"empty", `{}`, errors.ErrCodeInvalidInput},
		{"unknown key", `{"dataset": []}`, errors.ErrCodeInvalidInput},
		{"no selections", `{"datasets": [{"filename": "a.toml", "selections": {}}]}`, errors.ErrCodeInvalidSelection},
		{"bad normal", `{"datasets": [{"filename": "a.toml", "selections": {"slices": [{"fields": [{"field_type": "gas", "field_name": "d"}], "normal": "q"}]}}]}`, errors.ErrCodeInvalidSelection},
		{"no files", `{"timeseries": [{"file_selection": {"directory": "x"}, "selections": {"slices": [{"fields": [{"field_type": "gas", "field_name": "d"}], "normal": "x"}]}}]}`, errors.ErrCodeInvalidInput},
		{"bad unit", `{"datasets": [{"filename": "a.toml", "selections": {"regions": [{"fields": [{"field_type": "gas", "field_name": "d"}], "left_edge": {"value": [0, 0, 0], "unit": "furlong"}}]}}]}`, errors.ErrCodeInvalidUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDescription(strings.NewReader(tt.body), FormatJSON)
			if !errors.Is(err, tt.code) {
				t.Errorf("ReadDescription() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestImportDescriptionResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desc.json")
	if err := os.WriteFile(path, []byte(descJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := ImportDescription(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := d.Datasets[0].Filename, filepath.Join(dir, "box.toml"); got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
	if got, want := d.Timeseries[0].FileSelection.Directory, filepath.Join(dir, "outputs"); got != want {
		t.Errorf("Directory = %q, want %q", got, want)
	}

	if _, err := ImportDescription(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestDescriptionWithin(t *testing.T) {
	d, err := ReadDescription(strings.NewReader(descJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	d.Resolve("/srv/data")
	if err := d.Within("/srv/data"); err != nil {
		t.Errorf("Within() error: %v", err)
	}

	d.Datasets[0].Filename = "/srv/data/../secret.toml"
	if err := d.Within("/srv/data"); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("Within() escaping dataset error = %v, want INVALID_PATH", err)
	}

	d.Datasets[0].Filename = "/srv/data/box.toml"
	d.Timeseries[0].FileSelection.Pattern = ""
	d.Timeseries[0].FileSelection.List = []string{"../../elsewhere.toml"}
	if err := d.Within("/srv/data"); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("Within() escaping list entry error = %v, want INVALID_PATH", err)
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.toml": FormatTOML,
		"A.TOML": FormatTOML,
		"a.json": FormatJSON,
		"a":      FormatJSON,
	} {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDescriptionHash(t *testing.T) {
	a, _ := ReadDescription(strings.NewReader(descJSON), FormatJSON)
	b, _ := ReadDescription(strings.NewReader(descTOML), FormatTOML)
	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := b.Hash()
	if ha != hb {
		t.Error("equal descriptions should hash equally")
	}
	b.Timeseries[0].LoadAsStack = false
	if hc, _ := b.Hash(); hc == ha {
		t.Error("load_as_stack should change the hash")
	}
}

func TestExportRoundTrip(t *testing.T) {
	mk := func(name string, left, right float64, res int) layer.Spatial {
		d, err := domain.New(
			units.NewVector(units.Kiloparsec, left, left, left),
			units.NewVector(units.Kiloparsec, right, right, right),
			[]int{res})
		if err != nil {
			t.Fatal(err)
		}
		s := layer.NewSpatial(ndarray.Full(2, d.Resolution...), d, name)
		md, err := layer.NewMetadata(s.Data, d, true, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		s.Kwargs[layer.KeyMetadata] = md
		return s
	}
	samples := []layer.Spatial{mk("coarse", 0, 1, 10), mk("fine", 0.5, 1.5, 20)}
	c, err := align.Compose(samples, align.Options{})
	if err != nil {
		t.Fatal(err)
	}

	e := NewExport(align.ModeReference, c, c.Layers)
	var buf bytes.Buffer
	if err := WriteExport(e, &buf); err != nil {
		t.Fatal(err)
	}
	got, err := ReadExport(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Reference == nil || got.Reference.Name != "coarse" || got.Reference.Index != 0 {
		t.Fatalf("Reference = %+v", got.Reference)
	}
	if got.Bounds != nil {
		t.Error("reference mode export should not carry bounds")
	}
	if len(got.Layers) != 2 {
		t.Fatalf("got %d layers", len(got.Layers))
	}
	fine := got.Layers[1]
	if fine.Name != "fine" || !cmp.Equal(fine.Shape, []int{20, 20, 20}) {
		t.Errorf("fine = %+v", fine)
	}
	if fine.Scale == nil || fine.Translate == nil {
		t.Error("fine layer should be placed")
	}
	if got.Layers[0].Scale != nil {
		t.Error("reference layer should carry no scale")
	}
	if fine.DataRange == nil || *fine.DataRange != [2]float64{2, 2} || !fine.IsLog {
		t.Errorf("fine metadata = %v, %v", fine.DataRange, fine.IsLog)
	}
}

func TestImportExamples(t *testing.T) {
	for _, tt := range []struct {
		file    string
		samples int
	}{
		{"description.json", 4},
		{"description.toml", 3},
	} {
		t.Run(tt.file, func(t *testing.T) {
			d, err := ImportDescription(filepath.Join("..", "..", "examples", "galaxy", tt.file))
			if err != nil {
				t.Fatalf("ImportDescription: %v", err)
			}
			if got := d.Samples(); got != tt.samples {
				t.Errorf("samples = %d, want %d", got, tt.samples)
			}
			if !d.Timeseries[0].LoadAsStack {
				t.Error("timeseries should load as a stack")
			}
		})
	}
}
