package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/streamchat/config"
)

const testToken = "r8_0123456789012345678901234567890123456"

func fakeReplicate(t *testing.T, reply ...string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range reply {
			fmt.Fprintf(w, "event: output\ndata: %s\n\n", frag)
		}
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"p1","status":"starting","urls":{"stream":%q}}`, srv.URL+"/stream")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Provider.BaseURL = baseURL
	cfg.Provider.Token = testToken
	cfg.Tokenizer.Backend = config.TokenizerWords
	return cfg
}

func TestNewBackend(t *testing.T) {
	for _, name := range []string{config.ProviderReplicate, config.ProviderOpenAI, config.ProviderClaude, config.ProviderGemini} {
		b, err := newBackend(config.ProviderConfig{Name: name})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("Expected backend %s, got %s", name, b.Name())
		}
	}
	if _, err := newBackend(config.ProviderConfig{Name: "acme"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestChatSession(t *testing.T) {
	chatModel = ""
	srv := fakeReplicate(t, "Hal", "lo")
	in := strings.NewReader("Hoi\n/temperature 9\n/reset\n/quit\n")
	var out bytes.Buffer

	if err := chat(context.Background(), testConfig(srv.URL), in, &out); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"assistant> Stel mij een vraag.",
		"assistant> Hallo",
		"temperature=5.00",
		"warning:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Count(got, "Stel mij een vraag.") != 2 {
		t.Errorf("Expected the seed greeting again after /reset, got:\n%s", got)
	}
}

func TestChatRequiresCredential(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Provider.Token = "not-a-token"
	if err := chat(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("Expected credential error")
	}
}

func TestChatUnknownModel(t *testing.T) {
	chatModel = "acme/unknown"
	defer func() { chatModel = "" }()
	if err := chat(context.Background(), testConfig("http://127.0.0.1:0"), strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("Expected unknown model error")
	}
}

func TestCountTokens(t *testing.T) {
	cfg := testConfig("")
	var out bytes.Buffer

	asChat = false
	if err := countTokens(context.Background(), cfg, []string{"hello", "world"}, nil, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "2 tokens (ceiling 3072, ok)") {
		t.Errorf("Unexpected output %q", out.String())
	}

	out.Reset()
	cfg.Chat.TokenCeiling = 2
	if err := countTokens(context.Background(), cfg, nil, strings.NewReader("hello world"), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "too long") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestCountTokensAsChat(t *testing.T) {
	asChat = true
	defer func() { asChat = false }()
	var out bytes.Buffer
	if err := countTokens(context.Background(), testConfig(""), []string{"hi"}, nil, &out); err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(out.String(), "1 tokens") {
		t.Errorf("Expected chat markup to be counted, got %q", out.String())
	}
}
