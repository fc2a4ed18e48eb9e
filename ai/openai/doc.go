// Package openai provides ai.Provider implementations backed by
// OpenAI-compatible HTTP APIs (OpenAI, Ollama, LocalAI, vLLM) via langchaingo.
package openai
