package upstream

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestExtractTotalTokens(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   int64
		wantOK bool
	}{
		{"completion", `{"id":"x","usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, 15, true},
		{"zero usage", `{"usage":{"total_tokens":0}}`, 0, true},
		{"no usage", `{"choices":[]}`, 0, false},
		{"usage is a string", `{"usage":{"total_tokens":"15"}}`, 0, false},
		{"negative", `{"usage":{"total_tokens":-4}}`, 0, false},
		{"truncated", `{"usage":{"total_tokens":15`, 0, false},
		{"sse stream", "data: {\"usage\":{\"total_tokens\":9}}\n\ndata: [DONE]\n\n", 0, false},
		{"plain text", `upstream exploded`, 0, false},
		{"empty", ``, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTotalTokens([]byte(tt.body))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractTotalTokens(%q) = %d, %v; want %d, %v", tt.body, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRequestModel(t *testing.T) {
	if got := RequestModel([]byte(`{"model":"gpt-4o","messages":[]}`)); got != "gpt-4o" {
		t.Errorf("model = %q", got)
	}
	if got := RequestModel([]byte(`not json`)); got != "" {
		t.Errorf("model = %q, want empty", got)
	}
	if got := RequestModel([]byte(`{"model":7}`)); got != "" {
		t.Errorf("model = %q, want empty", got)
	}
}

func TestUsageCapture_TeeLeavesPrimaryStreamIntact(t *testing.T) {
	body := `{"choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"total_tokens":21}}`
	capture := NewUsageCapture(0)

	var primary bytes.Buffer
	if _, err := io.Copy(&primary, io.TeeReader(strings.NewReader(body), capture)); err != nil {
		t.Fatal(err)
	}

	if primary.String() != body {
		t.Errorf("primary stream altered: %q", primary.String())
	}
	if n, ok := capture.TotalTokens(); !ok || n != 21 {
		t.Errorf("TotalTokens = %d, %v; want 21, true", n, ok)
	}
}

func TestUsageCapture_Overflow(t *testing.T) {
	capture := NewUsageCapture(16)

	n, err := capture.Write([]byte(`{"usage":{"total_tokens":21}}`))
	if err != nil || n != 29 {
		t.Fatalf("Write = %d, %v; overflow must still report a full write", n, err)
	}
	if _, ok := capture.TotalTokens(); ok {
		t.Error("overflowed capture should not report usage")
	}
}
