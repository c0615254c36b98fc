package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-embedding-001:embedContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Content.Parts, 1)
		assert.Equal(t, "CTM at Berghain.", req.Content.Parts[0].Text)
		assert.Equal(t, TaskRetrievalDocument, req.TaskType)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, -0.2, 0.3}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	vec, err := client.Embed(context.Background(), "CTM at Berghain.", TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.2, 0.3}, vec)
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":"quota"}`, wantErr: "unexpected status 429"},
		{name: "malformed", status: http.StatusOK, body: `{bad`, wantErr: "unmarshal response"},
		{name: "empty_vector", status: http.StatusOK, body: `{"embedding":{"values":[]}}`, wantErr: "empty embedding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			vec, err := client.Embed(context.Background(), "text", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, vec)
		})
	}
}

func TestEmbedCustomModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{1}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithModel("text-embedding-004"))
	_, err := client.Embed(context.Background(), "text", "")
	require.NoError(t, err)
}
