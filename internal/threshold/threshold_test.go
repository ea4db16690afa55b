package threshold

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	inf := math.Inf(1)

	tests := []struct {
		raw    string
		invert bool
		lower  float64
		upper  float64
	}{
		{"90", false, 0, 90},
		{"0:90", false, 0, 90},
		{"80:95", false, 80, 95},
		{"@10:20", true, 10, 20},
		{":50", false, -inf, 50},
		{"~:50", false, -inf, 50},
		{"50:", false, 50, inf},
		{"@50:", true, 50, inf},
		{" 10 : 20 ", false, 10, 20},
		{"-5:5", false, -5, 5},
		{"99.95", false, 0, 99.95},
		{"10:10", false, 10, 10},
		{":", false, -inf, inf},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if r.Inverted() != tt.invert {
				t.Errorf("Inverted() = %v, want %v", r.Inverted(), tt.invert)
			}
			if r.Lower() != tt.lower {
				t.Errorf("Lower() = %v, want %v", r.Lower(), tt.lower)
			}
			if r.Upper() != tt.upper {
				t.Errorf("Upper() = %v, want %v", r.Upper(), tt.upper)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr error
	}{
		{"", ErrEmpty},
		{"   ", ErrEmpty},
		{"@", ErrEmpty},
		{"abc", ErrNotNumber},
		{"10:abc", ErrNotNumber},
		{"x:10", ErrNotNumber},
		{"1:2:3", ErrNotNumber},
		{"NaN", ErrNotNumber},
		{"inf", ErrNotNumber},
		{"10:~", ErrNotNumber},
		{"20:10", ErrInverted},
		{"-5", ErrInverted},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, err := Parse(tt.raw)
			if err == nil {
				t.Fatalf("Parse(%q) = %v, want error", tt.raw, r)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		raw   string
		value float64
		want  bool
	}{
		{"10:90", 50, true},
		{"10:90", 5, false},
		{"10:90", 95, false},
		{"10:90", 10, true},
		{"10:90", 90, true},
		{"@10:20", 15, false},
		{"@10:20", 25, true},
		{"@10:20", 5, true},
		{"@10:20", 10, false},
		{"@10:20", 20, false},
		{"90", 100, false},
		{"90", 90, true},
		{"90", -1, false},
		{"50:", 1e9, true},
		{"50:", 49.99, false},
		{":50", -1e9, true},
		{"85:100", 80, false},
	}

	for _, tt := range tests {
		r := MustParse(tt.raw)
		if got := r.Check(tt.value); got != tt.want {
			t.Errorf("Parse(%q).Check(%v) = %v, want %v", tt.raw, tt.value, got, tt.want)
		}
	}
}

func TestBareNumberEqualsZeroStart(t *testing.T) {
	bare := MustParse("90")
	explicit := MustParse("0:90")

	for _, v := range []float64{-0.01, 0, 45, 90, 90.01, 100} {
		if bare.Check(v) != explicit.Check(v) {
			t.Errorf("Check(%v) differs: bare=%v explicit=%v", v, bare.Check(v), explicit.Check(v))
		}
	}
}

func TestInvertedIsComplement(t *testing.T) {
	plain := MustParse("10:20")
	inverted := MustParse("@10:20")

	for v := 0.0; v <= 30; v += 0.5 {
		if plain.Check(v) == inverted.Check(v) {
			t.Errorf("Check(%v) not complementary: plain=%v inverted=%v", v, plain.Check(v), inverted.Check(v))
		}
	}
}

func TestString(t *testing.T) {
	tests := map[string]string{
		"90":      "0:90",
		"@10:20":  "@10:20",
		":50":     "~:50",
		"50:":     "50:",
		"0.5:1.5": "0.5:1.5",
	}
	for raw, want := range tests {
		if got := MustParse(raw).String(); got != want {
			t.Errorf("Parse(%q).String() = %q, want %q", raw, got, want)
		}
		if _, err := Parse(want); err != nil {
			t.Errorf("canonical form %q does not parse: %v", want, err)
		}
	}
}
