package prompt_composer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"drops empty segments and quotes", "a, b,, c\n\"d\"", "a, b, c, d"},
		{"model reply", "A girl,, smiling\n in the rain.", "A girl, smiling, in the rain."},
		{"curly quotes", "“sunset”, beach", "sunset, beach"},
		{"keeps prompt syntax", "(masterpiece:1.2), <lora:foo:0.8>, [bar|baz], #tag", "(masterpiece:1.2), <lora:foo:0.8>, [bar|baz], #tag"},
		{"strips accents", "café scene", "cafe scene"},
		{"replaces symbols", "cat & dog!! @ park", "cat dog park"},
		{"only punctuation", ",,,\n,", ""},
		{"collapses whitespace", "  a   lot\tof   space  ", "a lot of space"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"a, b,, c\n\"d\"",
		"A girl,, smiling\n in the rain.",
		"  “weird” ümläuts,,\n\n, and emoji \U0001F600 , ",
		"(best quality:1.3), 1girl, solo,",
		", , ,",
	}

	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "input %q", input)
	}
}

func TestSanitize_OutputShape(t *testing.T) {
	out := Sanitize("first line\nsecond \"quoted\" line,,\nthird")

	assert.NotContains(t, out, "\n")
	assert.NotContains(t, out, `"`)
	assert.NotContains(t, out, ",,")

	for _, segment := range strings.Split(out, ", ") {
		assert.NotEmpty(t, segment)
	}
}
