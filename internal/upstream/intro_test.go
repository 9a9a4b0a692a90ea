package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newIntroServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 300 {
			t.Errorf("model/max_tokens = %q/%d", req.Model, req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "system" || !strings.Contains(req.Messages[0].Content, "Bob") {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestIntroGenerator(srv *httptest.Server) *IntroGenerator {
	return NewIntroGenerator(IntroConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1",
		Model:      "gpt-4o-mini",
		MaxTokens:  300,
		HTTPClient: srv.Client(),
	})
}

func TestGenerateIntro(t *testing.T) {
	srv := newIntroServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi Bob!"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 40, "completion_tokens": 4, "total_tokens": 44}
	}`)

	intro, err := newTestIntroGenerator(srv).GenerateIntro(context.Background(), "Recipient: Bob")
	if err != nil {
		t.Fatal(err)
	}
	if intro.Text != "Hi Bob!" || intro.TotalTokens != 44 || intro.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("intro = %+v", intro)
	}
}

func TestGenerateIntro_NoChoices(t *testing.T) {
	srv := newIntroServer(t, http.StatusOK, `{"id":"x","choices":[],"usage":{"total_tokens":3}}`)

	if _, err := newTestIntroGenerator(srv).GenerateIntro(context.Background(), "Recipient: Bob"); err == nil {
		t.Fatal("expected an error for a reply without choices")
	}
}

func TestGenerateIntro_UpstreamError(t *testing.T) {
	srv := newIntroServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)

	_, err := newTestIntroGenerator(srv).GenerateIntro(context.Background(), "Recipient: Bob")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected a status 500 error, got %v", err)
	}
}
