package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bonfire-agent/pkg/llm"
)

func TestChat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Pick a theme first."},"done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 256, time.Second)
	out, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "ideas?"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != "Pick a theme first." {
		t.Errorf("Chat() = %q", out)
	}
	if got.Model != "llama3" || got.Options == nil || got.Options.NumPredict != 256 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Stream {
		t.Error("Stream should be false")
	}
}

func TestChat_MissingMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"llama3","done":true}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3", 0, time.Second).Chat(context.Background(), nil)
	if err != llm.ErrEmptyCompletion {
		t.Errorf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestNewOllamaProvider_DefaultModel(t *testing.T) {
	p := NewOllamaProvider("", "", 0, 0)
	if p.ModelName != DefaultModel {
		t.Errorf("ModelName = %q, want %q", p.ModelName, DefaultModel)
	}
	if p.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", p.BaseURL, DefaultBaseURL)
	}
}
