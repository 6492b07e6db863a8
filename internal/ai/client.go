// Package ai wraps the upstream language-model completion service.
package ai

import (
	"context"
	"time"

	"chat-brain/backend/pkg/logger"
	"chat-brain/backend/pkg/resilience"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// CompletionClient is a single-shot completion call. Implementations must
// not retry internally; the retry policy lives in the orchestrator.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicClient calls the Anthropic messages API through langchaingo,
// behind a circuit breaker so a misbehaving upstream is short-circuited
// instead of timing out every queued message.
type AnthropicClient struct {
	llm       llms.Model
	breaker   *resilience.CircuitBreaker
	maxTokens int
	timeout   time.Duration
}

// Options configures the Anthropic client
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewAnthropicClient creates a completion client for the given model
func NewAnthropicClient(opts Options, log *logger.Logger) (*AnthropicClient, error) {
	llm, err := anthropic.New(
		anthropic.WithToken(opts.APIKey),
		anthropic.WithModel(opts.Model),
	)
	if err != nil {
		return nil, err
	}

	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	return &AnthropicClient{
		llm:       llm,
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("anthropic"), log),
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
	}, nil
}

// Complete sends the prompt upstream and returns the completion text
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var completion string
	err := c.breaker.Execute(func() error {
		var genErr error
		completion, genErr = llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
			llms.WithMaxTokens(c.maxTokens),
		)
		return genErr
	})
	if err != nil {
		return "", err
	}

	return completion, nil
}
