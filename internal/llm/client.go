package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/sparkcoach/internal/config"
	"github.com/lazypower/sparkcoach/internal/logger"
)

// NewProvider creates the configured provider wrapped with retry, a
// per-attempt timeout and logging: caller → retry → timeout → logging → base.
func NewProvider(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (Provider, error) {
	base, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, ok := base.(*MockProvider); ok {
		return base, nil
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	return WithRetry(WithTimeout(WithLogging(base, log), cfg.Timeout), retry, log), nil
}

func newBase(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg.AnthropicKey, cfg.Model)
	case "openai":
		return NewOpenAI(cfg.OpenAIKey, cfg.Model, cfg.OpenAIURL)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiKey, cfg.Model)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.Model), nil
	case "claude-cli":
		return NewClaudeCLI(cfg.Model), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// WithTimeout bounds every Generate call on p by d.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: d}
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *timeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
