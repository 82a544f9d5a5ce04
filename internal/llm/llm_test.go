package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "hello") {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"riskLevel\":\"LOW\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("key", WithBaseURL(srv.URL))
	out, err := client.Generate(context.Background(), "hello")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"riskLevel":"LOW"}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOpenAIClient_NoKey(t *testing.T) {
	_, err := NewOpenAIClient("").Generate(context.Background(), "x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "gkey" {
			t.Errorf("missing key query")
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"part1 "},{"text":"part2"}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient("gkey", WithBaseURL(srv.URL), WithModel("gemini-test"))
	out, err := client.Generate(context.Background(), "prompt")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "part1 part2" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("key", WithBaseURL(srv.URL), WithMaxAttempts(3))
	_, err := client.Generate(context.Background(), "x")

	if err == nil || !strings.Contains(err.Error(), "bad prompt") {
		t.Fatalf("expected API error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
