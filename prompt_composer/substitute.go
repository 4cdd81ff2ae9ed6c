package prompt_composer

import (
	"regexp"
	"strings"
)

var macroRegex = regexp.MustCompile(`\{\{\s*([A-Za-z_]+)\s*\}\}`)

// SubstituteParams replaces {{name}} macros with values from vars. Names are matched case-insensitively
// and unknown macros are left as they are.
func SubstituteParams(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 {
		return text
	}

	lookup := make(map[string]string, len(vars))
	for k, v := range vars {
		lookup[strings.ToLower(k)] = v
	}

	return macroRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.ToLower(macroRegex.FindStringSubmatch(match)[1])

		if value, ok := lookup[name]; ok {
			return value
		}

		return match
	})
}
