package ai

import "errors"

var (
	// ErrUnavailable indicates the provider has no usable configuration or
	// credentials. Unlike a transient call failure, this is not retryable;
	// callers should surface it immediately.
	ErrUnavailable = errors.New("ai provider unavailable")
)
