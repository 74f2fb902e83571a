package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmcp/decomm/pkg/config"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced with language", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.input))
		})
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("DECOMM_TEST_LLM_KEY", "")

	settings := config.DefaultSettings().LLM
	settings.APIKeyEnv = "DECOMM_TEST_LLM_KEY"

	_, err := NewClient(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DECOMM_TEST_LLM_KEY")
}

func TestCompleteJSON_AgainstMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			System   []any  `json:"system"`
			Messages []any  `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "` + req.Model + `",
			"content": [{"type": "text", "text": "` + "```json\\n{\\\"ok\\\": true}\\n```" + `"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	settings := config.DefaultSettings().LLM
	client := NewClientWithBaseURL(settings, "test-key", server.URL)

	out, err := client.CompleteJSON(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, out)
}
