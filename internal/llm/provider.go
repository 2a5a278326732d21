// Package llm wraps the external text-analysis capability. The harness
// treats it as a black box with a documented input/output contract:
// prompts go in, JSON text comes out.
package llm

import (
	"context"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete performs one completion with a system and user message,
	// returning the raw response text
	Complete(ctx context.Context, system, user string) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// StripCodeFence removes a markdown code fence if the model wrapped its
// JSON response in one, despite instructions not to.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
