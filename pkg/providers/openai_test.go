package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()

	err := json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	require.NoError(t, err)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		chatReply(t, w, "generated text")
	}))
	defer server.Close()

	provider := NewOpenAI("test-key", WithBaseURL(server.URL))

	text, err := provider.Generate(t.Context(), "organize these steps")
	require.NoError(t, err)
	assert.Equal(t, "generated text", text)
	assert.Equal(t, ModelGPT4oMini, gotBody.Model)
}

func TestOpenAIProvider_Generate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	provider := NewOpenAI("test-key", WithBaseURL(server.URL))

	_, err := provider.Generate(t.Context(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProvider_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewOpenAI("test-key", WithBaseURL(server.URL))

	_, err := provider.Generate(t.Context(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestOpenAIProvider_DescribeImage_SendsDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "data:image/jpeg;base64,")
		chatReply(t, w, "a spreadsheet with totals selected")
	}))
	defer server.Close()

	provider := NewOpenAI("test-key", WithBaseURL(server.URL))

	desc, err := provider.DescribeImage(t.Context(), []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, "a spreadsheet with totals selected", desc)
}

func TestOpenAIProvider_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, ModelWhisper1, r.FormValue("model"))

		_, _ = w.Write([]byte(`{"text":"first I open the spreadsheet"}`))
	}))
	defer server.Close()

	provider := NewOpenAI("test-key", WithBaseURL(server.URL))

	text, err := provider.Transcribe(t.Context(), []byte("RIFF...WAVE"))
	require.NoError(t, err)
	assert.Equal(t, "first I open the spreadsheet", text)
}

func TestOpenAIProvider_Transcribe_EmptyAudio(t *testing.T) {
	provider := NewOpenAI("test-key", WithBaseURL("http://unused"))

	_, err := provider.Transcribe(t.Context(), nil)
	assert.Error(t, err)
}

func TestMock_ScriptedReplies(t *testing.T) {
	mock := NewMock()
	mock.GenerateReplies = []string{"one", "two"}

	first, err := mock.Generate(t.Context(), "p1")
	require.NoError(t, err)
	second, err := mock.Generate(t.Context(), "p2")
	require.NoError(t, err)

	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
	assert.Equal(t, 2, mock.GenerateCalls())
	assert.True(t, strings.HasPrefix(mock.Prompts[0], "p1"))

	// Exhausted script yields ErrEmptyResponse.
	_, err = mock.Generate(t.Context(), "p3")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
