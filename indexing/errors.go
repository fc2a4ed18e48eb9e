package indexing

import "errors"

var (
	// ErrJobStoreRequired is returned when a job store is not provided.
	ErrJobStoreRequired = errors.New("job store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidChunkSize is returned when a chunk size is <= 0.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidRateLimit is returned when a rate limit is <= 0.
	ErrInvalidRateLimit = errors.New("rate limit must be greater than 0")
)
