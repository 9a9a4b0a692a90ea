package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("UPSTREAM_API_KEY", "sk-test")
	t.Setenv("FRONTEND_ORIGIN", "https://chat.example.github.io")
	t.Setenv("STORE_BACKEND", "memory")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Quota.DailyTokenLimit != 100_000 {
		t.Errorf("DailyTokenLimit = %d, want 100000", cfg.Quota.DailyTokenLimit)
	}
	if cfg.Quota.CounterTTL != 48*time.Hour {
		t.Errorf("CounterTTL = %s, want 48h", cfg.Quota.CounterTTL)
	}
	if cfg.Links.TTL != 30*24*time.Hour {
		t.Errorf("Links.TTL = %s, want 720h", cfg.Links.TTL)
	}
	if cfg.Links.ShareBaseURL != "https://chat.example.github.io" {
		t.Errorf("ShareBaseURL = %q, want the frontend origin", cfg.Links.ShareBaseURL)
	}
	if got := cfg.Upstream.ChatCompletionsURL(); got != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("ChatCompletionsURL = %q", got)
	}
}

func TestLoad_LinkTTLSeconds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LINK_TTL_SECONDS", "3600")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Links.TTL != time.Hour {
		t.Errorf("Links.TTL = %s, want 1h", cfg.Links.TTL)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantSub string
	}{
		{"missing api key", "UPSTREAM_API_KEY", "", "APIKey"},
		{"origin with path", "FRONTEND_ORIGIN", "https://example.com/chat", "FrontendOrigin"},
		{"non-http upstream", "UPSTREAM_BASE_URL", "ftp://api.example.com", "BaseURL"},
		{"unknown backend", "STORE_BACKEND", "dynamo", "Backend"},
		{"slug too short", "SLUG_LENGTH", "2", "SlugLength"},
		{"negative limit", "DAILY_TOKEN_LIMIT", "-1", "DailyTokenLimit"},
		{"counter ttl under a day", "QUOTA_COUNTER_TTL", "1h", "QUOTA_COUNTER_TTL"},
		{"shared namespace", "LINK_NAMESPACE", "chat_quota", "LinkNamespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_KafkaRequiresBrokers(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when kafka is enabled without brokers")
	}
}
