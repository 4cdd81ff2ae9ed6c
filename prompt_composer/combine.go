package prompt_composer

import (
	"strings"
	"unicode"
)

// PromptMacro marks where the generated prompt goes inside a prefix.
const PromptMacro = "{prompt}"

func trimPrompt(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// CombinePrefixes merges addition into base. If macro is set and base contains it, the first occurrence
// is replaced by addition, otherwise addition is appended after a comma.
func CombinePrefixes(base, addition, macro string) string {
	if addition == "" {
		return trimPrompt(base)
	}

	base = trimPrompt(base)
	addition = trimPrompt(addition)

	var combined string

	if macro != "" && strings.Contains(base, macro) {
		combined = strings.Replace(base, macro, addition, 1)
	} else {
		combined = base + ", " + addition + ","
	}

	return trimPrompt(combined)
}
