package llm

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"
)

// NewProvider creates a Provider from configuration, wrapped with request
// logging. httpClient may be nil.
func NewProvider(ctx context.Context, cfg Config, httpClient *http.Client, logger *log.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case "ollama":
		base, err = NewOllamaProvider(cfg.Ollama, httpClient)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI, httpClient)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic, httpClient)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini, httpClient)
	case "mock":
		base = NewBenchProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithLogging(base, logger), nil
}
