package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/examgen/internal/store"
)

// NewProvider creates a Provider from configuration.
// The base provider is wrapped with logging, per-call timeout and, when
// cfg.Retry.MaxAttempts > 1, retry middleware. A nil eventRepo disables
// event logging.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg, eventRepo), nil
}

// Wrap applies the middleware chain to base:
// caller → retry → timeout → logging → base.
// Logging sits innermost so every attempt, including timed-out ones, is
// recorded.
func Wrap(base Provider, cfg Config, eventRepo store.EventRepo) Provider {
	p := base
	if eventRepo != nil {
		p = WithLogging(p, eventRepo)
	}
	p = WithTimeout(p, cfg.Timeout)
	if cfg.Retry.MaxAttempts > 1 {
		p = WithRetry(p, cfg.Retry)
	}
	return p
}
