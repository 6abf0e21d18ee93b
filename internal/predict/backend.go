package predict

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/config"
	"github.com/sells-group/claims-cli/internal/resilience"
	"github.com/sells-group/claims-cli/pkg/anthropic"
	"github.com/sells-group/claims-cli/pkg/openai"
)

// New builds the Predictor described by cfg. A missing key, the "none"
// provider or an unknown provider name yields Unavailable.
func New(cfg config.ProviderConfig) Predictor {
	if cfg.Name == "none" || cfg.Key == "" {
		zap.L().Info("predict: reasoning provider not configured, deterministic fallbacks only",
			zap.String("provider", cfg.Name))
		return Unavailable{}
	}

	var backend Completer
	switch cfg.Name {
	case "anthropic":
		backend = NewAnthropicBackend(anthropic.NewClient(cfg.Key, cfg.BaseURL), cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case "openai":
		backend = NewOpenAIBackend(openai.NewClient(cfg.Key, cfg.BaseURL), cfg.Model, cfg.MaxTokens, cfg.Temperature)
	default:
		zap.L().Warn("predict: unknown provider, deterministic fallbacks only",
			zap.String("provider", cfg.Name))
		return Unavailable{}
	}

	return NewLLM(backend, Options{
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		RatePerSec: cfg.RatePerSec,
		Backoff:    resilience.NewBackoff(cfg.RetryAttempts, cfg.RetryBackoffMs, cfg.RetryMaxBackoffMs),
		Breaker:    resilience.NewBreakerConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs),
	})
}

// AnthropicBackend completes prompts with the Anthropic Messages API.
type AnthropicBackend struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicBackend wraps an Anthropic client.
func NewAnthropicBackend(client anthropic.Client, model string, maxTokens int, temperature float64) *AnthropicBackend {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicBackend{client: client, model: model, maxTokens: int64(maxTokens), temperature: temperature}
}

// Name identifies the backend.
func (b *AnthropicBackend) Name() string { return "anthropic" }

// Complete sends p as a single user message behind a cached system block.
func (b *AnthropicBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	temp := b.temperature
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   b.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(p.System, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", resilience.ClassifyStatus(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(b.model, p.Stage)

	text := resp.Text()
	if text == "" {
		return "", eris.Errorf("anthropic: empty answer (stop reason %s)", resp.StopReason)
	}
	return text, nil
}

// OpenAIBackend completes prompts with an OpenAI-compatible chat endpoint.
type OpenAIBackend struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIBackend wraps an OpenAI-compatible client.
func NewOpenAIBackend(client openai.Client, model string, maxTokens int, temperature float64) *OpenAIBackend {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAIBackend{client: client, model: model, maxTokens: maxTokens, temperature: float32(temperature)}
}

// Name identifies the backend.
func (b *OpenAIBackend) Name() string { return "openai" }

// Complete sends p in JSON mode.
func (b *OpenAIBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := b.client.CreateChat(ctx, openai.ChatRequest{
		Model:       b.model,
		MaxTokens:   b.maxTokens,
		System:      p.System,
		User:        p.User,
		Temperature: b.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", resilience.ClassifyStatus(err, openai.StatusCode(err))
	}
	resp.Usage.LogUsage(b.model, p.Stage)

	if resp.Content == "" {
		return "", eris.Errorf("openai: empty answer (finish reason %s)", resp.FinishReason)
	}
	return resp.Content, nil
}
