package units

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/domainstack/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"m", Meter, false},
		{" km ", Kilometer, false},
		{"kpc", Kiloparsec, false},
		{"Mpc", Megaparsec, false},
		{"code_length", CodeLength, false},
		{"furlong", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidUnit) {
				t.Errorf("Parse(%q) code = %v, want %v", tt.in, errors.GetCode(err), errors.ErrCodeInvalidUnit)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVectorTo(t *testing.T) {
	tests := []struct {
		name string
		in   Vector
		to   Unit
		want []float64
	}{
		{"km to m", NewVector(Kilometer, 1, 1, 1), Meter, []float64{1000, 1000, 1000}},
		{"m to km", NewVector(Meter, 2000, 2000, 2000), Kilometer, []float64{2, 2, 2}},
		{"identity", NewVector(Kiloparsec, 0.5, 1.5), Kiloparsec, []float64{0.5, 1.5}},
		{"kpc to pc", NewVector(Kiloparsec, 1), Parsec, []float64{1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.To(tt.to, nil)
			if err != nil {
				t.Fatalf("To() error: %v", err)
			}
			if got.Unit != tt.to {
				t.Errorf("Unit = %q, want %q", got.Unit, tt.to)
			}
			if diff := cmp.Diff(tt.want, got.Value, cmpopts.EquateApprox(1e-12, 0)); diff != "" {
				t.Errorf("Value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVectorToDoesNotMutate(t *testing.T) {
	v := NewVector(Kilometer, 1, 2)
	if _, err := v.To(Meter, nil); err != nil {
		t.Fatal(err)
	}
	if v.Value[0] != 1 || v.Value[1] != 2 {
		t.Errorf("source vector mutated: %v", v.Value)
	}
}

func TestCodeLengthRequiresContext(t *testing.T) {
	v := NewVector(CodeLength, 0.5, 0.5)
	if _, err := v.To(Kiloparsec, nil); !errors.Is(err, errors.ErrCodeUnitContext) {
		t.Fatalf("To() without context error = %v, want %s", err, errors.ErrCodeUnitContext)
	}

	// same-unit conversion never needs a context
	if _, err := v.To(CodeLength, nil); err != nil {
		t.Errorf("To(code_length) without context error = %v", err)
	}

	ctx, err := NewContext("sim", 2, Kiloparsec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := v.To(Kiloparsec, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1, 1}, got.Value, cmpopts.EquateApprox(1e-12, 0)); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertAcrossContexts(t *testing.T) {
	a, _ := NewContext("a", 1, Kilometer)
	b, _ := NewContext("b", 2, Kilometer)
	got, err := Convert([]float64{4}, CodeLength, a, CodeLength, b)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 2 {
		t.Errorf("Convert() = %v, want [2]", got)
	}
}

func TestNewContext(t *testing.T) {
	if _, err := NewContext("x", 0, Meter); err == nil {
		t.Error("NewContext(0) expected error")
	}
	if _, err := NewContext("x", 1, CodeLength); err == nil {
		t.Error("NewContext(code_length) expected error")
	}
	ctx, err := NewContext("x", 3, Kilometer)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.CodeLength != 3000 {
		t.Errorf("CodeLength = %v, want 3000", ctx.CodeLength)
	}
}

func TestQuantityTo(t *testing.T) {
	q := Quantity{Value: 1.5, Unit: Kilometer}
	got, err := q.To(Meter, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Value != 1500 || got.Unit != Meter {
		t.Errorf("To() = %+v, want 1500 m", got)
	}
}
