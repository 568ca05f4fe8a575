package tokenizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sweetpotato0/streamchat/config"
	apperrors "github.com/sweetpotato0/streamchat/errors"
)

func TestCachedLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	c := NewCached(func() (Tokenizer, error) {
		calls.Add(1)
		return NewWordTokenizer(), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.CountTokens("hello world"); err != nil {
				t.Errorf("CountTokens failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected loader to run once, ran %d times", got)
	}
}

func TestCachedRemembersFailure(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	c := NewCached(func() (Tokenizer, error) {
		calls++
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		_, err := c.CountTokens("x")
		if !errors.Is(err, apperrors.ErrTokenizerLoad) {
			t.Errorf("Expected ErrTokenizerLoad, got %v", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("Expected wrapped cause, got %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected one load attempt, got %d", calls)
	}
}

func TestCachedNilLoader(t *testing.T) {
	if _, err := NewCached(nil).Get(); !errors.Is(err, apperrors.ErrTokenizerLoad) {
		t.Errorf("Expected ErrTokenizerLoad, got %v", err)
	}
	nilTk := NewCached(func() (Tokenizer, error) { return nil, nil })
	if _, err := nilTk.Get(); !errors.Is(err, apperrors.ErrTokenizerLoad) {
		t.Errorf("Expected ErrTokenizerLoad for nil tokenizer, got %v", err)
	}
}

func TestWordTokenizer(t *testing.T) {
	tk := NewWordTokenizer()
	tests := []struct {
		text string
		want int
	}{
		{text: "", want: 0},
		{text: "hello world", want: 2},
		{text: "<|im_start|>user", want: 8},
		{text: "你好 abc123!", want: 4},
	}
	for _, tt := range tests {
		if got := tk.CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
		if got := len(tk.Encode(tt.text)); got != tt.want {
			t.Errorf("len(Encode(%q)) = %d, want %d", tt.text, got, tt.want)
		}
	}

	a := tk.Encode("same same")
	if a[0] != a[1] {
		t.Error("Expected identical tokens to share an id")
	}
}

func TestLoadHFMissingFile(t *testing.T) {
	_, err := LoadHF(context.Background(), filepath.Join(t.TempDir(), "tokenizer.json"))
	if err == nil {
		t.Error("Expected error for missing tokenizer file")
	}
}

func loadLlamaTokenizer(t *testing.T) *HFTokenizer {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	tk, err := LoadHF(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("LoadHF failed: %v", err)
	}
	return tk
}

func TestHFTokenizerCountsPromptText(t *testing.T) {
	tk := loadLlamaTokenizer(t)

	if got := tk.CountTokens("hi"); got != 1 {
		t.Errorf("Expected 1 token for hi, got %d", got)
	}
	if got := tk.Encode("hi"); !slices.Equal(got, []int{6}) {
		t.Errorf("Expected ids [6], got %v", got)
	}
	if got := tk.Encode("hello hi"); !slices.Equal(got, []int{14, 6}) {
		t.Errorf("Expected ids [14 6], got %v", got)
	}
}

func TestHFTokenizerAddsNoSpecialTokens(t *testing.T) {
	tk := loadLlamaTokenizer(t)

	for _, id := range tk.Encode("hello hi") {
		if id == 1 || id == 2 {
			t.Errorf("Expected no <s> or </s>, got id %d", id)
		}
	}
}

func TestNewHFTokenizerFromBytes(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	tk, err := NewHFTokenizer(raw)
	if err != nil {
		t.Fatalf("NewHFTokenizer failed: %v", err)
	}
	if got := tk.CountTokens("hello hi"); got != 2 {
		t.Errorf("Expected 2 tokens, got %d", got)
	}
}

func TestNewHFTokenizerRejectsGarbage(t *testing.T) {
	if _, err := NewHFTokenizer([]byte("not json")); err == nil {
		t.Error("Expected parse error")
	}
}

func TestNewTiktokenTokenizerUnknownEncoding(t *testing.T) {
	if _, err := NewTiktokenTokenizer("definitely-not-an-encoding"); err == nil {
		t.Error("Expected error for unknown encoding")
	}
}

func TestNewLoader(t *testing.T) {
	load, err := NewLoader(context.Background(), config.TokenizerConfig{Backend: config.TokenizerWords})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	tk, err := load()
	if err != nil || tk.CountTokens("a b") != 2 {
		t.Errorf("Unexpected words loader result: %v", err)
	}

	if _, err := NewLoader(context.Background(), config.TokenizerConfig{Backend: "sentencepiece"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestNewLoaderHuggingFace(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("testdata", "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	load, err := NewLoader(context.Background(), config.TokenizerConfig{
		Backend: config.TokenizerHuggingFace,
		Source:  path,
	})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	n, err := NewCached(load).CountTokens("hello hi")
	if err != nil {
		t.Fatalf("CountTokens failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 tokens, got %d", n)
	}
}
