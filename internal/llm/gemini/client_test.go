package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coach-backend/internal/llm"
)

func TestCompleteSendsInlineImage(t *testing.T) {
	oldURL := baseURL
	t.Cleanup(func() { baseURL = oldURL })

	var path, key string
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Here you go {\"overall_score\": 8}"}]}}]}`))
	}))
	defer server.Close()
	baseURL = server.URL + "/v1beta/models"

	client, err := NewClient("g-key", "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Complete(context.Background(), llm.Input{
		Prompt: "rate",
		Image:  &llm.Image{MimeType: "image/jpeg", Data: []byte("img")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(out.Text, `"overall_score": 8`) {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if path != "/v1beta/models/gemini-1.5-pro:generateContent" || key != "g-key" {
		t.Fatalf("unexpected request path=%s key=%s", path, key)
	}
	cfg := body["generationConfig"].(map[string]any)
	if cfg["maxOutputTokens"] != float64(1500) {
		t.Fatalf("unexpected generation config: %v", cfg)
	}
	parts := body["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	if inline["mime_type"] != "image/jpeg" || inline["data"] != "aW1n" {
		t.Fatalf("unexpected inline data: %v", inline)
	}
}

func TestCompleteNon2xx(t *testing.T) {
	oldURL := baseURL
	t.Cleanup(func() { baseURL = oldURL })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	baseURL = server.URL

	client, _ := NewClient("g-key", "gemini-1.5-flash", 0)
	_, err := client.Complete(context.Background(), llm.Input{Prompt: "rate"})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.Error() != "Gemini API error: 500" {
		t.Fatalf("unexpected message %q", statusErr.Error())
	}
}

func TestCompleteWithoutCandidatesIsEmptyCompletion(t *testing.T) {
	oldURL := baseURL
	t.Cleanup(func() { baseURL = oldURL })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()
	baseURL = server.URL

	client, _ := NewClient("g-key", "gemini-1.5-pro", 0)
	_, err := client.Complete(context.Background(), llm.Input{Prompt: "rate"})
	if !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}
