package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func writeDeltas(w http.ResponseWriter, deltas ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, d := range deltas {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]any{"content": d}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		w.(http.Flusher).Flush()
	}
}

func TestOpenAIClient_Stream(t *testing.T) {
	var got openAIRequest
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		writeDeltas(w, "Hello", ", ", "world.")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test"})
	defer client.Shutdown(context.Background())

	text, err := Collect(context.Background(), client, &StreamRequest{
		Prompt:       "greet",
		SystemPrompt: "be polite",
		ModelID:      "gpt-4o",
		Temperature:  0.2,
		MaxTokens:    256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", text)

	assert.True(t, got.Stream)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "greet", got.Messages[1].Content)
}

func TestOpenAIClient_HTTPError(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL})
	defer client.Shutdown(context.Background())

	_, err := Collect(context.Background(), client, &StreamRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestOpenAIClient_MissingSentinel(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeDeltas(w, "cut off")
	})

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL})
	defer client.Shutdown(context.Background())

	text, err := Collect(context.Background(), client, &StreamRequest{Prompt: "x"})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "cut off", text)
}

func TestReadSSE(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{
			name:  "skips malformed and empty deltas",
			input: "data: {bad json}\n\ndata: {\"choices\":[{\"delta\":{}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n",
			want:  "ok",
		},
		{
			name:    "api error chunk",
			input:   "data: {\"error\":{\"message\":\"context length exceeded\"}}\n\n",
			wantErr: "context length exceeded",
		},
		{
			name:  "stops at sentinel",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\ndata: [DONE]\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n",
			want:  "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			err := readSSE(strings.NewReader(tt.input), func(s string) bool {
				sb.WriteString(s)
				return true
			})
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sb.String())
		})
	}
}
