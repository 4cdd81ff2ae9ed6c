package prompt_composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteParams(t *testing.T) {
	vars := map[string]string{
		"char":   "Alice",
		"prompt": "a cat",
	}

	assert.Equal(t, "portrait of Alice, a cat", SubstituteParams("portrait of {{char}}, {{prompt}}", vars))
	assert.Equal(t, "Alice", SubstituteParams("{{ CHAR }}", vars))
	assert.Equal(t, "{{user}} waves", SubstituteParams("{{user}} waves", vars))
	assert.Equal(t, "{prompt}", SubstituteParams("{prompt}", vars))
	assert.Equal(t, "", SubstituteParams("", vars))
}
