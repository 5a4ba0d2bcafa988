package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aretw0/canopy/pkg/ports"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config selects and parameterizes one model role.
type Config struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// client adapts a langchaingo model to the engine's ModelClient port.
type client struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// New creates a retry-wrapped ModelClient for the given provider config.
func New(cfg Config) (ports.ModelClient, error) {
	base, err := newBase(cfg)
	if err != nil {
		return nil, err
	}
	return WithRetry(base, DefaultRetryPolicy()), nil
}

func newBase(cfg Config) (ports.ModelClient, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	var model llms.Model
	var err error
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		model, err = openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		model, err = anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %q (valid: %s, %s)",
			cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	return &client{model: model, temperature: cfg.Temperature, maxTokens: maxTokens}, nil
}

// Invoke sends a single prompt and returns the model's text response.
func (c *client) Invoke(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
}
