package llm

import (
	"fmt"
	"strings"
	"time"
)

// Providers understood by NewBackend.
const (
	ProviderSimulated  = "simulated"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderClaudeCode = "claudecode"
)

const defaultRequestTimeout = 60 * time.Second

// NewBackend creates a raw narrator backend based on the provided configuration.
func NewBackend(cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderSimulated:
		return newSimulatedBackend(cfg)
	case ProviderOpenAI:
		return newOpenAIBackend(cfg)
	case ProviderAnthropic:
		return newAnthropicBackend(cfg)
	case ProviderClaudeCode:
		return newClaudeCodeBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported narrator provider: %s", cfg.Provider)
	}
}

func requestTimeout(cfg Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultRequestTimeout
}
