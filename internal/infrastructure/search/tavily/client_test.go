package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/paperstand/internal/infrastructure/resilience"
)

func TestSearchSendsExpectedPayload(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Attention Is All You Need", "url": "https://arxiv.org/abs/1706.03762", "content": "transformer architecture"},
			},
		})
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL, "key-123", nil)
	results, err := client.Search(context.Background(), "transformer paper", 3, "basic")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if got.APIKey != "key-123" || got.Query != "transformer paper" || got.MaxResults != 3 || got.SearchDepth != "basic" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(results) != 1 || results[0].URL != "https://arxiv.org/abs/1706.03762" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchDefaultsApplied(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL, "key", nil)
	if _, err := client.Search(context.Background(), "q", 0, ""); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got.MaxResults != 5 || got.SearchDepth != "advanced" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestSearchHTTPErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL, "bad-key", nil)
	_, err := client.Search(context.Background(), "q", 5, "advanced")

	var statusErr *resilience.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}
