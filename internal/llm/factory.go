package llm

import (
	"fmt"

	"github.com/salesiq/salesiq-agent/internal/config"
)

// NewClient constructs the appropriate backend client based on config.
// Called once at startup.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic), nil
	case "ollama":
		return NewOllamaClient(cfg.Ollama, cfg.InferenceTimeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of anthropic, ollama, mock", cfg.Provider)
	}
}
