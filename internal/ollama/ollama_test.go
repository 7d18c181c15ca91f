// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError_Is(t *testing.T) {
	err := &ClientError{Type: ErrTypeNotRunning, Message: "dial failed", Cause: errors.New("refused")}

	if !errors.Is(err, ErrNotRunning) {
		t.Error("expected not-running error to match sentinel")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("not-running error must not match timeout sentinel")
	}
	if !IsNotRunning(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsNotRunning should see through wrapping")
	}
	if err.Error() != "dial failed: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorType_String(t *testing.T) {
	tests := map[ErrorType]string{
		ErrTypeNotRunning:    "not_running",
		ErrTypeTimeout:       "timeout",
		ErrTypeModelNotFound: "model_not_found",
		ErrTypeCanceled:      "canceled",
		ErrTypeUnknown:       "unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example:11434/"})
	assert.Equal(t, "http://example:11434", c.BaseURL())

	c = NewClientWithConfig(nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c.SetBaseURL("http://other:1/")
	assert.Equal(t, "http://other:1", c.BaseURL())
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	require.NoError(t, c.CheckRunning(context.Background()))
}

func TestCheckRunning_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).CheckRunning(context.Background())
	require.Error(t, err)

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeConnection, ce.Type)
}

func TestCheckRunning_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClientWithConfig(&ClientConfig{BaseURL: url}).CheckRunning(context.Background())
	assert.True(t, IsNotRunning(err), "got %v", err)
}

func TestCheckRunning_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.CheckRunning(context.Background())
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{
			{Name: "llama3.2:latest", Size: 2 << 30, Details: ModelDetails{Family: "llama"}},
			{Name: "mistral:7b"},
		}})
	}))
	defer srv.Close()

	models, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
	assert.Equal(t, "llama", models[0].Details.Family)
}

func TestListModels_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).ListModels(context.Background())
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeInvalidResponse, ce.Type)
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func generateServer(t *testing.T, lines ...string) (*httptest.Server, *GenerateRequest) {
	t.Helper()
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		for _, line := range lines {
			_, _ = fmt.Fprintln(w, line)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestGenerateStream(t *testing.T) {
	srv, got := generateServer(t,
		`{"model":"llama3.2","response":"Hel","done":false}`,
		`{"model":"llama3.2","response":"lo","done":false}`,
		`{"model":"llama3.2","response":"","done":true,"context":[7,8,9],"eval_count":2,"eval_duration":1000000000,"prompt_eval_count":5}`,
	)

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	var chunks []StreamChunk
	err := c.GenerateStream(context.Background(), GenerateRequest{
		Model:   "llama3.2",
		Prompt:  "hi",
		Context: []int{1, 2},
	}, func(chunk StreamChunk) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", got.Model)
	assert.Equal(t, "hi", got.Prompt)
	assert.True(t, got.Stream)
	assert.Equal(t, []int{1, 2}, got.Context)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	last := chunks[2]
	assert.True(t, last.Done)
	assert.Equal(t, []int{7, 8, 9}, last.Context)
	assert.Equal(t, 2, last.CompletionTokens)
	assert.Equal(t, 5, last.PromptTokens)
	assert.Equal(t, time.Second, last.EvalDuration)
}

func TestGenerateStream_UsesDefaultModel(t *testing.T) {
	srv, got := generateServer(t, `{"response":"","done":true}`)

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, DefaultModel: "qwen2.5"})
	require.NoError(t, c.GenerateStream(context.Background(), GenerateRequest{Prompt: "x"}, func(StreamChunk) {}))
	assert.Equal(t, "qwen2.5", got.Model)
}

func TestGenerateStream_ErrorLine(t *testing.T) {
	srv, _ := generateServer(t,
		`{"response":"par","done":false}`,
		`{"error":"out of memory"}`,
	)

	var text strings.Builder
	err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).GenerateStream(context.Background(),
		GenerateRequest{Model: "m", Prompt: "p"},
		func(chunk StreamChunk) { text.WriteString(chunk.Content) })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, "par", text.String())
}

func TestGenerateStream_Truncated(t *testing.T) {
	srv, _ := generateServer(t, `{"response":"a","done":false}`)

	err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).GenerateStream(context.Background(),
		GenerateRequest{Model: "m", Prompt: "p"}, func(StreamChunk) {})
	assert.ErrorIs(t, err, ErrStreamTruncated)
}

func TestGenerateStream_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(OllamaError{Error: `model "nope" not found, try pulling it first`})
	}))
	defer srv.Close()

	err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).GenerateStream(context.Background(),
		GenerateRequest{Model: "nope", Prompt: "p"}, func(StreamChunk) {})
	assert.True(t, IsModelNotFound(err))
	assert.Contains(t, err.Error(), "try pulling it first")
}

func TestGenerateStream_Canceled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"response":"a","done":false}`)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).GenerateStream(ctx,
		GenerateRequest{Model: "m", Prompt: "p"}, func(StreamChunk) {})
	assert.True(t, IsCanceled(err), "got %v", err)
}

func TestGenerateStreamChan(t *testing.T) {
	srv, _ := generateServer(t,
		`{"response":"x","done":false}`,
		`{"response":"y","done":true,"context":[1]}`,
	)

	ch := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).GenerateStreamChan(context.Background(),
		GenerateRequest{Model: "m", Prompt: "p"})

	var got []StreamChunk
	for chunk := range ch {
		got = append(got, chunk)
	}
	require.Len(t, got, 2)
	assert.NoError(t, got[1].Error)
	assert.True(t, got[1].Done)
}

func TestGenerateStreamChan_DeliversError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch := NewClientWithConfig(&ClientConfig{BaseURL: url}).GenerateStreamChan(context.Background(),
		GenerateRequest{Model: "m", Prompt: "p"})

	chunk, ok := <-ch
	require.True(t, ok)
	assert.True(t, chunk.Done)
	assert.True(t, IsNotRunning(chunk.Error))

	_, ok = <-ch
	assert.False(t, ok)
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReader_SkipsMalformedAndBlankLines(t *testing.T) {
	body := strings.Join([]string{
		`{"model":"m","response":"a","done":false}`,
		``,
		`garbage`,
		`{"response":"b","done":false}`,
		`{"response":"","done":true}`,
	}, "\n")

	r := NewStreamReader(strings.NewReader(body))
	var chunks []StreamChunk
	require.NoError(t, r.Process(context.Background(), func(c StreamChunk) { chunks = append(chunks, c) }))

	require.Len(t, chunks, 3)
	var text strings.Builder
	for _, c := range chunks {
		text.WriteString(c.Content)
	}
	assert.Equal(t, "ab", text.String())
	assert.Equal(t, "m", chunks[2].Model)
}

func TestStreamReader_FinalLineWithoutNewline(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"response":"z","done":true}`))
	var last StreamChunk
	require.NoError(t, r.Process(context.Background(), func(c StreamChunk) { last = c }))
	assert.True(t, last.Done)
	assert.Equal(t, "z", last.Content)
}
