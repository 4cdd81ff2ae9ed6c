package prompt_composer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	quoteReplacer = strings.NewReplacer(`"`, "", "“", "", "”", "")

	// Everything outside of the characters that prompt syntax relies on (weights, wildcards, LoRA tags).
	disallowedRegex = regexp.MustCompile(`[^a-zA-Z0-9.,:_(){}<>\[\]\-'|#]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Sanitize turns a free-form language model reply into a comma separated prompt.
// The result never contains quotes, newlines or empty comma segments.
func Sanitize(reply string) string {
	if reply == "" {
		return ""
	}

	reply = quoteReplacer.Replace(reply)
	reply = strings.ReplaceAll(reply, "\n", ", ")
	reply = norm.NFD.String(reply)

	reply = disallowedRegex.ReplaceAllString(reply, " ")
	reply = whitespaceRegex.ReplaceAllString(reply, " ")
	reply = strings.TrimSpace(reply)

	segments := strings.Split(reply, ",")
	kept := make([]string, 0, len(segments))

	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		kept = append(kept, segment)
	}

	return strings.Join(kept, ", ")
}
