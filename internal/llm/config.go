package llm

import "fmt"

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the backend: "ollama", "openai", "anthropic", "gemini" or "mock".
	Provider string `yaml:"provider"`

	Ollama    OllamaConfig    `yaml:"ollama"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// OllamaConfig points at a local model server's OpenAI-compatible API.
type OllamaConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // optional, for compatible gateways
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		Ollama: OllamaConfig{
			Model:   "phi3",
			BaseURL: "http://127.0.0.1:11434/v1",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		MaxTokens: 512,
	}
}

// Validate checks that the selected provider is known and has what it needs.
func (c Config) Validate() error {
	switch c.Provider {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			return fmt.Errorf("llm: ollama base URL is required")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("llm: OPENAI_API_KEY is required for the openai provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("llm: ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("llm: GEMINI_API_KEY is required for the gemini provider")
		}
	case "mock":
	default:
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm: max tokens must not be negative")
	}
	return nil
}
