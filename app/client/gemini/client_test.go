package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cuecard/app/service/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	persona, _ := prompt.Lookup("interview")
	client := NewClient(server.URL + "/v1beta/")
	client.Configure("test-key", persona, "")

	return client, &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGenerateRequestShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/"+Model+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "system", req.Contents[0].Parts[0].Text)
		assert.Equal(t, "user", req.Contents[0].Parts[1].Text)
		assert.Equal(t, generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		}, req.GenerationConfig)

		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  **answer**\n"},{"text":"ignored"}]}}]}`)
	})

	text, err := client.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "  **answer**\n", text)
}

func TestGenerateMissingCredential(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	client.Configure("  ", prompt.Persona{ID: "interview"}, "")

	_, err := client.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, KindMissingCredential, KindOf(err))
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, client.Configured())
}

func TestGenerateUnconfigured(t *testing.T) {
	client := NewClient("http://127.0.0.1:0")

	_, err := client.Generate(context.Background(), "s", "u")
	assert.Equal(t, KindMissingCredential, KindOf(err))
}

func TestGenerateNon2xx(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"quota"}}`)
	})

	_, err := client.Generate(context.Background(), "s", "u")
	require.Error(t, err)

	var gErr *Error
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, KindRequestFailed, gErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, gErr.Status)
	assert.Contains(t, gErr.Error(), "quota")
	assert.Equal(t, FallbackText, gErr.Fallback())
	assert.Equal(t, int32(1), calls.Load(), "no internal retries")
}

func TestGenerateEmptyResponses(t *testing.T) {
	bodies := map[string]string{
		"malformed":       `{"candidates":`,
		"no candidates":   `{"candidates":[]}`,
		"no parts":        `{"candidates":[{"content":{"parts":[]}}]}`,
		"empty text":      `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
		"empty object":    `{}`,
		"unexpected type": `[]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})

			_, err := client.Generate(context.Background(), "s", "u")
			assert.Equal(t, KindEmptyResponse, KindOf(err))
		})
	}
}

func TestGenerateTransportErrorRedactsKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL)
	client.Configure("super-secret", prompt.Persona{ID: "interview"}, "")

	_, err := client.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, KindRequestFailed, KindOf(err))
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestGenerateCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "s", "u")
	assert.Equal(t, KindCancelled, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindRequestFailed, KindOf(errors.New("boom")))
	assert.Equal(t, KindEmptyResponse, KindOf(&Error{Kind: KindEmptyResponse}))
	assert.Equal(t, FallbackText, FallbackOf(errors.New("boom")))
	assert.Equal(t, "No response generated", FallbackOf(&Error{Kind: KindEmptyResponse}))
}
