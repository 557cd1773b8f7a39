package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Version
	}{
		{"0.3.0", Version{0, 3, 0}},
		{"v1.2.3", Version{1, 2, 3}},
		{"10.23.4", Version{10, 23, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"1.0",
		"abc",
		"1.x.0",
		"-1.0.0",
		"1..0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestCurrentParses(t *testing.T) {
	v := MustParse(Current)
	if v.String() != Current {
		t.Errorf("String() = %q, want %q", v.String(), Current)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.0.0", "1.4.2", true},
		{"1.0.0", "2.0.0", false},
		{"0.3.0", "0.3.9", true},
		{"0.3.0", "0.4.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := MustParse(tt.a).Compatible(MustParse(tt.b)); got != tt.want {
				t.Errorf("Compatible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLess(t *testing.T) {
	if !MustParse("0.3.0").Less(MustParse("0.3.1")) {
		t.Error("0.3.0 should sort before 0.3.1")
	}
	if MustParse("1.0.0").Less(MustParse("0.9.9")) {
		t.Error("1.0.0 should not sort before 0.9.9")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("bogus")
}
