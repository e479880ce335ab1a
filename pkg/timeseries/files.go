package timeseries

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// FileSelection picks the outputs of a timeseries, either by glob pattern
// within a directory or by explicit list, optionally thinned by a
// [start, stop, step] range over the sorted result.
type FileSelection struct {
	Directory string   `json:"directory,omitempty" toml:"directory,omitempty"`
	Pattern   string   `json:"file_pattern,omitempty" toml:"file_pattern,omitempty"`
	List      []string `json:"file_list,omitempty" toml:"file_list,omitempty"`
	Range     []int    `json:"file_range,omitempty" toml:"file_range,omitempty"`
}

// Validate checks that exactly one of Pattern and List is set and that Range
// is well formed.
func (fs FileSelection) Validate() error {
	switch {
	case fs.Pattern == "" && len(fs.List) == 0:
		return errors.New(errors.ErrCodeInvalidInput, "file selection needs a file_pattern or a file_list")
	case fs.Pattern != "" && len(fs.List) > 0:
		return errors.New(errors.ErrCodeInvalidInput, "file selection takes a file_pattern or a file_list, not both")
	}
	if fs.Pattern != "" {
		if err := errors.ValidateFilePattern(fs.Pattern); err != nil {
			return err
		}
	}
	if fs.Directory != "" {
		if err := errors.ValidatePath(fs.Directory); err != nil {
			return err
		}
	}
	if !fs.hasRange() {
		return nil
	}
	if len(fs.Range) != 3 {
		return errors.New(errors.ErrCodeInvalidInput, "file_range must be [start, stop, step], got %v", fs.Range)
	}
	if fs.Range[0] < 0 || fs.Range[1] < fs.Range[0] || fs.Range[2] <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid file_range %v", fs.Range)
	}
	return nil
}

// hasRange treats an absent or all-zero range as unset.
func (fs FileSelection) hasRange() bool {
	for _, v := range fs.Range {
		if v != 0 {
			return true
		}
	}
	return false
}

// Find returns the selected files in sorted order. Relative list entries are
// resolved against Directory.
func (fs FileSelection) Find() ([]string, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}

	var files []string
	if fs.Pattern != "" {
		matches, err := filepath.Glob(filepath.Join(fs.Directory, fs.Pattern))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "glob %s", fs.Pattern)
		}
		files = matches
	} else {
		for _, f := range fs.List {
			if fs.Directory != "" && !filepath.IsAbs(f) {
				f = filepath.Join(fs.Directory, f)
			}
			if _, err := os.Stat(f); err != nil {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "timeseries file %s", f)
			}
			files = append(files, f)
		}
	}
	sort.Strings(files)

	if fs.hasRange() {
		start, stop, step := fs.Range[0], min(fs.Range[1], len(files)), fs.Range[2]
		var picked []string
		for i := start; i < stop; i += step {
			picked = append(picked, files[i])
		}
		files = picked
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no timeseries files matched in %q", fs.Directory)
	}
	return files, nil
}
