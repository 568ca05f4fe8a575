package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/replicate/replicate-go"

	"github.com/sweetpotato0/streamchat/provider"
)

const testToken = "r8_0123456789012345678901234567890123456"

type predictionBody struct {
	Version string `json:"version"`
	Stream  bool   `json:"stream"`
	Input   struct {
		Prompt         string  `json:"prompt"`
		PromptTemplate string  `json:"prompt_template"`
		Temperature    float64 `json:"temperature"`
		TopP           float64 `json:"top_p"`
	} `json:"input"`
}

type fakeAPI struct {
	t        *testing.T
	server   *httptest.Server
	lastPath string
	lastBody predictionBody
	events   string
}

func newFakeAPI(t *testing.T, events string) *fakeAPI {
	f := &fakeAPI{t: t, events: events}
	mux := http.NewServeMux()
	mux.HandleFunc("/stream/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, f.events)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"title":"Unauthenticated","detail":"You did not pass a valid authentication token","status":401}`)
			return
		}
		f.lastPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&f.lastBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"p1","status":"starting","urls":{"stream":%q}}`, f.server.URL+"/stream/1")
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) provider() *Provider {
	return New(&Config{BaseURL: f.server.URL})
}

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for frag, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
	return out, nil
}

func request(model string) *provider.Request {
	return &provider.Request{
		Model:          model,
		Prompt:         "<|im_start|>user\nhi<|im_end|>\n<|im_start|>assistant\n",
		PromptTemplate: "{prompt}",
		Temperature:    0.7,
		TopP:           0.9,
		Credential:     testToken,
	}
}

func TestStreamOfficialModel(t *testing.T) {
	api := newFakeAPI(t, "event: output\ndata: Hel\n\nevent: output\ndata: lo\n\nevent: done\ndata: {}\n\n")

	frags, err := collect(api.provider().Stream(context.Background(), request("meta/meta-llama-3-70b-instruct")))
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if strings.Join(frags, "") != "Hello" || len(frags) != 2 {
		t.Errorf("Unexpected fragments %q", frags)
	}
	if api.lastPath != "/models/meta/meta-llama-3-70b-instruct/predictions" {
		t.Errorf("Unexpected path %s", api.lastPath)
	}
	if api.lastBody.Version != "" || !api.lastBody.Stream {
		t.Errorf("Unexpected body %+v", api.lastBody)
	}
	in := api.lastBody.Input
	if in.PromptTemplate != "{prompt}" || in.Temperature != 0.7 || in.TopP != 0.9 {
		t.Errorf("Unexpected input %+v", in)
	}
}

func TestStreamVersionedModel(t *testing.T) {
	api := newFakeAPI(t, "event: output\ndata: ok\n\nevent: done\ndata: {}\n\n")

	model := "google-deepmind/gemma-2b-it:dff94eaf770e1fc211e425a50b51baa8e4cac6c39ef074681f9e39d778773626"
	if _, err := collect(api.provider().Stream(context.Background(), request(model))); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if api.lastPath != "/predictions" {
		t.Errorf("Unexpected path %s", api.lastPath)
	}
	if api.lastBody.Version != "dff94eaf770e1fc211e425a50b51baa8e4cac6c39ef074681f9e39d778773626" {
		t.Errorf("Unexpected version %s", api.lastBody.Version)
	}
}

func events(evs ...replicate.SSEEvent) (<-chan replicate.SSEEvent, <-chan error) {
	ch := make(chan replicate.SSEEvent, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	errs := make(chan error)
	close(errs)
	return ch, errs
}

func output(data string) replicate.SSEEvent {
	return replicate.SSEEvent{Type: replicate.SSETypeOutput, Data: data}
}

func TestRelayErrorEvent(t *testing.T) {
	ch, errs := events(
		output("par"),
		replicate.SSEEvent{Type: replicate.SSETypeError, Data: `{"detail":"CUDA out of memory"}`},
	)

	frags, err := collect(relay(context.Background(), "p1", ch, errs))
	if err == nil || !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("Expected error event to surface, got %v", err)
	}
	if len(frags) != 1 {
		t.Errorf("Expected the partial fragment before the error, got %q", frags)
	}
}

func TestRelayEndsWithoutDone(t *testing.T) {
	ch, errs := events(output("Het is"))

	frags, err := collect(relay(context.Background(), "p1", ch, errs))
	if err == nil || !strings.Contains(err.Error(), "stream ended before done event") {
		t.Fatalf("Expected truncated stream to fail, got %v", err)
	}
	if len(frags) != 1 || frags[0] != "Het is" {
		t.Errorf("Unexpected fragments %q", frags)
	}
}

func TestRelayCanceledPrediction(t *testing.T) {
	ch, errs := events(replicate.SSEEvent{Type: replicate.SSETypeDone, Data: `{"reason":"canceled"}`})
	if _, err := collect(relay(context.Background(), "p1", ch, errs)); err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Errorf("Expected canceled prediction to fail, got %v", err)
	}
}

func TestRelaySkipsLogs(t *testing.T) {
	ch, errs := events(
		replicate.SSEEvent{Type: replicate.SSETypeLogs, Data: "loading weights"},
		output("ok"),
		replicate.SSEEvent{Type: replicate.SSETypeDone, Data: "{}"},
	)

	frags, err := collect(relay(context.Background(), "p1", ch, errs))
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if len(frags) != 1 || frags[0] != "ok" {
		t.Errorf("Unexpected fragments %q", frags)
	}
}

func TestRelayStreamError(t *testing.T) {
	ch := make(chan replicate.SSEEvent)
	errs := make(chan error, 1)
	errs <- fmt.Errorf("connection reset")

	if _, err := collect(relay(context.Background(), "p1", ch, errs)); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Expected reader error to surface, got %v", err)
	}
}

func TestRelayContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collect(relay(ctx, "p1", make(chan replicate.SSEEvent), make(chan error)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStreamUnauthorized(t *testing.T) {
	api := newFakeAPI(t, "")
	req := request("a/b")
	req.Credential = "r8_wrong"

	_, err := collect(api.provider().Stream(context.Background(), req))
	if err == nil || !strings.Contains(err.Error(), "valid authentication token") {
		t.Errorf("Expected API error detail, got %v", err)
	}
}

func TestStreamConsumerStopsEarly(t *testing.T) {
	api := newFakeAPI(t, "event: output\ndata: a\n\nevent: output\ndata: b\n\nevent: done\ndata: {}\n\n")

	var got []string
	for frag, err := range api.provider().Stream(context.Background(), request("a/b")) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frag)
		break
	}
	if len(got) != 1 {
		t.Errorf("Expected exactly one fragment, got %q", got)
	}
}

func TestStreamNilRequest(t *testing.T) {
	if _, err := collect(New(nil).Stream(context.Background(), nil)); err == nil {
		t.Error("Expected error for nil request")
	}
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		model   string
		owner   string
		name    string
		version string
		wantErr bool
	}{
		{model: "a/b", owner: "a", name: "b"},
		{model: "a/b:v1", owner: "a", name: "b", version: "v1"},
		{model: "nomodel", wantErr: true},
		{model: "a/b/c", wantErr: true},
		{model: "a/b:", wantErr: true},
		{model: "/b", wantErr: true},
	}
	for _, tt := range tests {
		owner, name, version, err := parseModel(tt.model)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseModel(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			continue
		}
		if owner != tt.owner || name != tt.name || version != tt.version {
			t.Errorf("parseModel(%q) = (%s, %s, %s), want (%s, %s, %s)", tt.model, owner, name, version, tt.owner, tt.name, tt.version)
		}
	}
}
