package prompt

import (
	"strings"
	"testing"

	"github.com/sweetpotato0/streamchat/message"
)

func TestFormatConversation(t *testing.T) {
	msgs := []*message.Message{
		message.Assistant("Stel mij een vraag."),
		message.User("Hoe laat is het?"),
	}

	got := Format(msgs)
	want := "<|im_start|>assistant\nStel mij een vraag.<|im_end|>\n" +
		"<|im_start|>user\nHoe laat is het?<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if got != want {
		t.Errorf("Format mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatEmptyConversation(t *testing.T) {
	if got := Format(nil); got != "<|im_start|>assistant\n" {
		t.Errorf("Unexpected prompt for empty conversation: %q", got)
	}
}

func TestFormatSkipsNil(t *testing.T) {
	got := Format([]*message.Message{nil, message.User("hi")})
	if strings.Count(got, "<|im_start|>") != 2 {
		t.Errorf("Expected nil message to be skipped: %q", got)
	}
}

func TestCustomMarkup(t *testing.T) {
	m := Markup{Start: "[", End: "]"}
	got := m.Format([]*message.Message{message.User("x")})
	if got != "[user\nx]\n[assistant\n" {
		t.Errorf("Unexpected custom markup output: %q", got)
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder().Add("a").Add("b")
	if b.Len() != 2 || b.Build() != "a\nb" {
		t.Errorf("Unexpected builder output %q", b.Build())
	}
	if b.Reset().Len() != 0 {
		t.Error("Expected empty builder after reset")
	}
}
