package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

type capturedChat struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Images  []string `json:"images"`
	} `json:"messages"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

func newChatServer(t *testing.T, content string, captured *capturedChat) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Fatalf("decode chat request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
		})
	}))
}

func TestCompleteDeterministicPinsTemperature(t *testing.T) {
	var captured capturedChat
	server := newChatServer(t, "  NEED_VISION\n", &captured)
	defer server.Close()

	client := New(server.URL, "llama3.1:8b", "llava:13b", "nomic-embed-text", nil)
	got, err := client.Complete(context.Background(), domain.CompletionRequest{
		System:        "route",
		Prompt:        "question",
		Deterministic: true,
		MaxTokens:     20,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "NEED_VISION" {
		t.Fatalf("expected trimmed content, got %q", got)
	}

	if captured.Model != "llama3.1:8b" || captured.Stream {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if temp, ok := captured.Options["temperature"]; !ok || temp != float64(0) {
		t.Fatalf("expected temperature 0, got %v", captured.Options)
	}
	if captured.Options["num_predict"] != float64(20) {
		t.Fatalf("expected num_predict 20, got %v", captured.Options)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "question" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestCompleteNonDeterministicOmitsTemperature(t *testing.T) {
	var captured capturedChat
	server := newChatServer(t, "answer", &captured)
	defer server.Close()

	client := New(server.URL, "gen", "vis", "emb", nil)
	if _, err := client.Complete(context.Background(), domain.CompletionRequest{Prompt: "q"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok := captured.Options["temperature"]; ok {
		t.Fatalf("temperature must not be set: %v", captured.Options)
	}
}

func TestCompleteVisionEncodesImages(t *testing.T) {
	var captured capturedChat
	server := newChatServer(t, "the table shows gains", &captured)
	defer server.Close()

	client := New(server.URL, "gen", "llava:13b", "emb", nil)
	images := [][]byte{[]byte("png-one"), []byte("png-two")}
	got, err := client.CompleteVision(context.Background(), domain.VisionRequest{
		System: "analyze",
		Prompt: "what is in the table",
		Images: images,
	})
	if err != nil {
		t.Fatalf("complete vision: %v", err)
	}
	if got != "the table shows gains" {
		t.Fatalf("unexpected content: %q", got)
	}

	if captured.Model != "llava:13b" {
		t.Fatalf("expected vision model, got %q", captured.Model)
	}
	userMsg := captured.Messages[1]
	if len(userMsg.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(userMsg.Images))
	}
	if userMsg.Images[0] != base64.StdEncoding.EncodeToString(images[0]) {
		t.Fatalf("image not base64 encoded: %q", userMsg.Images[0])
	}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Fatalf("unexpected embed request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "vis", "nomic-embed-text", nil))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 0.4 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestEmbedQueryEmptyResultIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "vis", "emb", nil))
	_, err := embedder.EmbedQuery(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestCompleteServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "vis", "emb", nil)
	_, err := client.Complete(context.Background(), domain.CompletionRequest{Prompt: "q"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for 503, got %v", err)
	}
}
