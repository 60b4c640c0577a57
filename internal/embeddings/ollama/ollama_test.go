package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Fatalf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float64{0.1, 0.2, 0.3},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
}

func TestProviderEmbedEmptyText(t *testing.T) {
	p := New("http://localhost:11434", "nomic-embed-text")
	if _, err := p.Embed(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestProviderHealthPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{{"name": "mxbai-embed-large:latest"}},
		})
	}))
	defer srv.Close()

	if err := New(srv.URL, "mxbai-embed-large").HealthPing(context.Background()); err != nil {
		t.Fatalf("health ping: %v", err)
	}
	if err := New(srv.URL, "nomic-embed-text").HealthPing(context.Background()); err == nil {
		t.Fatalf("expected missing-model error")
	}
}
