package config

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

func TestReplicateCredential(t *testing.T) {
	valid := "r8_" + strings.Repeat("a", 37)
	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{name: "valid", token: valid, ok: true},
		{name: "empty", token: "", ok: false},
		{name: "wrong prefix", token: "r9_" + strings.Repeat("a", 37), ok: false},
		{name: "too short", token: "r8_abc", ok: false},
		{name: "too long", token: valid + "x", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReplicateCredential.Check(tt.token)
			if (err == nil) != tt.ok {
				t.Fatalf("Check(%q) error = %v, want ok=%v", tt.token, err, tt.ok)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidCredential) {
				t.Errorf("Expected ErrInvalidCredential, got %v", err)
			}
			if ReplicateCredential.Valid(tt.token) != tt.ok {
				t.Errorf("Valid(%q) disagrees with Check", tt.token)
			}
		})
	}
}

func TestCredentialRuleMinLength(t *testing.T) {
	rule := CredentialRule{Prefix: "sk-", MinLength: 10}
	if rule.Valid("sk-short") {
		t.Error("Expected short token to be rejected")
	}
	if !rule.Valid("sk-longenough") {
		t.Error("Expected long token to be accepted")
	}
}
