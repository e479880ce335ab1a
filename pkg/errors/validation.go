package errors

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a dataset or description path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(p string) error {
	if p == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(p) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range p {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateWithin checks that p, after cleaning, lies inside root. Relative
// paths are taken relative to root.
func ValidateWithin(root, p string) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "path %q is outside %q", p, root)
	}
	return nil
}

// ValidateFilePattern validates a glob pattern used to discover timeseries files.
// The pattern must be a bare file name pattern without path separators; the
// directory is supplied separately.
func ValidateFilePattern(pattern string) error {
	if pattern == "" {
		return New(ErrCodeInvalidPath, "file pattern cannot be empty")
	}
	if strings.ContainsAny(pattern, "/\\") {
		return New(ErrCodeInvalidPath, "file pattern cannot contain path separators: %q", pattern)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return Wrap(ErrCodeInvalidPath, err, "malformed file pattern %q", pattern)
	}
	return nil
}

// fieldNameRegex matches valid field type and field name components.
var fieldNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// ValidateFieldName validates one component of a (field_type, field_name) pair.
func ValidateFieldName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidSelection, "field name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidSelection, "field name too long (max 256 characters)")
	}
	if !fieldNameRegex.MatchString(name) {
		return New(ErrCodeInvalidSelection, "invalid field name: %q", name)
	}
	return nil
}
