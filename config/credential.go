package config

import (
	"fmt"
	"strings"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// CredentialRule describes the expected shape of a provider bearer token.
// Tokens are never verified cryptographically; the rule only catches typos
// and empty input before a request is attempted.
type CredentialRule struct {
	Prefix    string
	Length    int // exact length; 0 disables the check
	MinLength int
}

// ReplicateCredential matches Replicate API tokens ("r8_" + 37 characters).
var ReplicateCredential = CredentialRule{Prefix: "r8_", Length: 40}

// Check validates token against the rule.
func (r CredentialRule) Check(token string) error {
	v := NewValidator()
	v.RequireNonEmpty("token", token)
	if v.HasErrors() {
		return fmt.Errorf("%w: token is empty", apperrors.ErrInvalidCredential)
	}
	v.RequirePrefix("token", token, r.Prefix).
		ValidateLength("token", token, r.Length).
		ValidateMinLength("token", token, r.MinLength)
	if v.HasErrors() {
		msgs := make([]string, 0, len(v.Errors()))
		for _, e := range v.Errors() {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidCredential, strings.Join(msgs, "; "))
	}
	return nil
}

// Valid reports whether token passes Check.
func (r CredentialRule) Valid(token string) bool {
	return r.Check(token) == nil
}
