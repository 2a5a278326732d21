package llm

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/config"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg)

	case "":
		// No provider configured - LLM disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", cfg.Provider)
	}
}
