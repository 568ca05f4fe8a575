package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredential indicates that the bearer token failed the shape check
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrUnknownModel indicates that a model name is not in the catalog
	ErrUnknownModel = errors.New("unknown model")

	// ErrPromptTooLong indicates that the formatted prompt reached the token ceiling
	ErrPromptTooLong = errors.New("prompt too long")

	// ErrTurnInProgress indicates that a session is already generating a reply
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrTokenizerLoad indicates that the tokenizer could not be loaded
	ErrTokenizerLoad = errors.New("tokenizer load failed")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)
