package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/streamchat/provider"
)

func TestStreamTextDeltas(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"m1\",\"type\":\"message\",\"role\":\"assistant\",\"model\":\"claude\",\"content\":[],\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":1,\"output_tokens\":0}}}\n\n")
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
		for _, text := range []string{"Hal", "lo"} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", text)
		}
		fmt.Fprint(w, "event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	p := New(&Config{BaseURL: srv.URL})
	var sb strings.Builder
	for frag, err := range p.Stream(context.Background(), &provider.Request{
		Model:       "claude-test",
		Prompt:      "<|im_start|>user\nhi<|im_end|>\n<|im_start|>assistant\n",
		Temperature: 3,
		TopP:        0.9,
		Credential:  "sk-ant-0123456789abcdef",
	}) {
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		sb.WriteString(frag)
	}

	if sb.String() != "Hallo" {
		t.Errorf("Expected Hallo, got %q", sb.String())
	}
	if body["temperature"] != 1.0 {
		t.Errorf("Expected temperature capped at 1, got %v", body["temperature"])
	}
}

func TestCredentialRule(t *testing.T) {
	rule := New(nil).CredentialRule()
	if rule.Valid("r8_abc") {
		t.Error("Expected Replicate-shaped token to be rejected")
	}
	if !rule.Valid("sk-ant-api03-0123456789") {
		t.Error("Expected Anthropic key to be accepted")
	}
}
