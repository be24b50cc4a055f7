package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateText(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<tweets><tweet>gm</tweet></tweets>"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", "deepseek-chat")
	text, err := c.GenerateText(context.Background(), "be brief", "say gm")
	require.NoError(t, err)
	assert.Equal(t, "<tweets><tweet>gm</tweet></tweets>", text)

	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "say gm", got.Messages[1].Content)
}

func TestGenerateTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", "m").GenerateText(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit: slow down")
}
