// Package llm wraps a hosted OpenAI-compatible chat endpoint with retry,
// pacing, and timeout handling shared by the evaluator and generator stages.
package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientConfig configures one hosted provider connection.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float64
	MaxTokens     int
	RetryAttempts int
	RetryBaseWait time.Duration // first backoff step, doubled per attempt
	RateLimit     float64       // calls per second
	Timeout       time.Duration
}

// Client issues blocking chat completions against a single provider.
type Client struct {
	config  ClientConfig
	model   llms.Model
	limiter *rate.Limiter
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.Model == "" {
		return nil, eris.New("llm: model is required")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBaseWait == 0 {
		config.RetryBaseWait = 2 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "llm: initialize client")
	}

	return &Client{
		config:  config,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Complete sends one system+user exchange and returns the raw completion
// text. Failed calls are retried with exponential backoff and jitter up to
// RetryAttempts times.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := c.generate(ctx, content)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt < c.config.RetryAttempts {
			zap.L().Warn("llm call failed, retrying",
				zap.String("model", c.config.Model),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-time.After(backoff(c.config.RetryBaseWait, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", eris.Wrap(lastErr, "llm: completion failed after retries")
}

func (c *Client) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(callCtx, content,
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", eris.New("llm: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// backoff returns base * 2^(attempt-1) plus up to half of base in jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	wait := base << (attempt - 1)
	return wait + time.Duration(rand.Int63n(int64(base/2)+1))
}
