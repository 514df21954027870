package llm

import (
	"fmt"
	"os"
)

// Provider identifiers.
const (
	ProviderChat   = "chat"   // any OpenAI-compatible endpoint
	ProviderGemini = "gemini" // Google Gemini via the genai SDK
)

// NewClient creates a generation client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderChat, "":
		return NewChatClient(cfg), nil
	case ProviderGemini:
		return NewGenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %s, %s)", cfg.Provider, ProviderChat, ProviderGemini)
	}
}

// DetectConfig resolves a client config from environment variables.
// Priority: OPENAI_API_KEY > GEMINI_API_KEY.
func DetectConfig() (Config, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return DefaultChatConfig(key), nil
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return Config{
			Provider: ProviderGemini,
			APIKey:   key,
		}, nil
	}

	return Config{}, fmt.Errorf("no API key found; set OPENAI_API_KEY or GEMINI_API_KEY, or configure .adscribe/config.yaml")
}
