package fs

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		valid    bool
		warnings int
	}{
		{name: "simple", input: "kick.wav", valid: true},
		{name: "spaces inside", input: "my sample.wav", valid: true},
		{name: "empty", input: "", valid: false},
		{name: "whitespace only", input: "   ", valid: false},
		{name: "control character", input: "bad\x01name", valid: false},
		{name: "pipe", input: "a|b", valid: false},
		{name: "question mark", input: "why?.wav", valid: false},
		{name: "asterisk", input: "*.wav", valid: false},
		{name: "colon", input: "a:b", valid: false},
		{name: "backslash", input: `a\b`, valid: false},
		{name: "reserved CON", input: "CON", valid: false},
		{name: "reserved lowercase", input: "con", valid: false},
		{name: "reserved COM7", input: "com7", valid: false},
		{name: "reserved LPT1", input: "LPT1", valid: false},
		{name: "reserved as prefix is fine", input: "CONFIG.XML", valid: true},
		{name: "trailing dot warns", input: "song.", valid: true, warnings: 1},
		{name: "trailing space warns", input: "song ", valid: true, warnings: 1},
		{name: "too long", input: strings.Repeat("a", 256), valid: false},
		{name: "max length ok", input: strings.Repeat("a", 255), valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateName(tt.input)
			if res.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v (errors: %v)", res.Valid(), tt.valid, res.Errors)
			}
			if len(res.Warnings) != tt.warnings {
				t.Errorf("warnings %v, want %d", res.Warnings, tt.warnings)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "kick.wav", want: "kick.wav"},
		{input: "a|b?.wav", want: "a_b_.wav"},
		{input: `a<>:"/\|?*b`, want: "a_________b"},
		{input: "bad\x01\x02name", want: "bad__name"},
		{input: "CON", want: "_CON"},
		{input: "lpt3", want: "_lpt3"},
		{input: "", want: "_"},
		{input: "   ", want: "_"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeName(tt.input); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotentAndValid(t *testing.T) {
	inputs := []string{
		"kick.wav", "a|b?.wav", "CON", "com9", "", "   ", "bad\x1fname",
		`x<>:"/\|?*`, "song.", strings.Repeat("z", 255), "名前.wav",
	}
	for _, in := range inputs {
		once := SanitizeName(in)
		twice := SanitizeName(once)
		if once != twice {
			t.Errorf("sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		if res := ValidateName(once); !res.Valid() {
			t.Errorf("sanitize(%q) = %q still invalid: %v", in, once, res.Errors)
		}
	}
}
