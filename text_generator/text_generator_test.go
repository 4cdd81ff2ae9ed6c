package text_generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, reply string, captured *chatRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		choices := []map[string]any{}
		if reply != "" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-test",
			"choices": choices,
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestGenerateQuiet(t *testing.T) {
	var captured chatRequest
	server := newServer(t, "A girl,, smiling\n in the rain.", &captured)

	generator, err := New(Config{
		BaseURL:      server.URL + "/v1/",
		APIKey:       "secret",
		Model:        "gpt-test",
		SystemPrompt: "You describe images.",
	})
	require.NoError(t, err)

	reply, err := generator.GenerateQuiet(context.Background(), "Generate a prompt", []HistoryMessage{
		{Author: "Bob", Content: "Look, it's raining"},
		{Author: "Alice", Content: "I love rain", FromBot: true},
		{Author: "Bob", Content: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, "A girl,, smiling\n in the rain.", reply)

	assert.Equal(t, "gpt-test", captured.Model)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "Bob: Look, it's raining", captured.Messages[1].Content)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "Generate a prompt", captured.Messages[3].Content)
}

func TestGenerateQuiet_NoChoices(t *testing.T) {
	var captured chatRequest
	server := newServer(t, "", &captured)

	generator, err := New(Config{BaseURL: server.URL + "/v1", APIKey: "secret", Model: "gpt-test"})
	require.NoError(t, err)

	_, err = generator.GenerateQuiet(context.Background(), "Generate a prompt", nil)
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestNew_MissingModel(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
