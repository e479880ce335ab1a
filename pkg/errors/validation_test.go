package errors

import (
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "data/galaxy0030.toml", false},
		{"absolute", "/tmp/output_0001.toml", false},
		{"empty", "", true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"too long", string(make([]byte, 5000)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateWithin(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative", "sims/box.toml", false},
		{"root itself", ".", false},
		{"absolute inside", "/srv/data/sims/box.toml", false},
		{"dot dot inside", "sims/../box.toml", false},
		{"escape", "../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"sibling prefix", "/srv/data2/box.toml", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWithin("/srv/data", tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWithin(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateWithin(%q) code = %v, want %v", tt.path, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateFilePattern(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"question marks", "output_????", false},
		{"star", "*.toml", false},
		{"class", "DD00[0-4]?", false},
		{"empty", "", true},
		{"separator", "dir/*.toml", true},
		{"malformed", "out[", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePattern(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilePattern(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"gas", false},
		{"density", false},
		{"Density", false},
		{"particle_mass.1", false},
		{"", true},
		{"1density", true},
		{"den sity", true},
		{"den:sity", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateFieldName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFieldName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
