// Package ai defines the capability interfaces consumed by the indexing
// pipeline and search engine: text embedding and session summarization.
//
// Implementations live in subpackages: openai provides clients for
// OpenAI-compatible services, mock provides deterministic test doubles.
// Consumers depend only on the interfaces here; the concrete provider is
// constructed once and injected, and can be rebound explicitly when
// credentials change.
package ai
