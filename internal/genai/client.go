// Package genai wraps the Genkit model and embedder handles behind the
// narrow call shapes the chat pipeline needs: a single-shot completion,
// a token stream, and a one-vector embedding.
package genai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/prompt"
)

// errStreamStopped aborts generation when the stream consumer stops early.
var errStreamStopped = errors.New("stream consumer stopped")

// Client calls one configured chat-completion model.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	g           *genkit.Genkit
	model       ai.Model
	temperature float32
	maxTokens   int
	timeout     time.Duration // per Complete call; non-positive = none
	retry       RetryConfig
	limiter     *rate.Limiter // nil = no proactive rate limiting
	logger      *slog.Logger
}

// NewClient creates a Client for model. limiter may be nil.
func NewClient(g *genkit.Genkit, model ai.Model, temperature float32, maxTokens int, timeout time.Duration, retry RetryConfig, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		g:           g,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		retry:       retry,
		limiter:     limiter,
		logger:      logger,
	}
}

// Complete runs a single non-streaming generation and returns the full text.
// Transient upstream failures are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, msgs []prompt.Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := c.options(msgs)

	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first.
		if err := c.wait(ctx); err != nil {
			return "", err
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generation completed",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp.Text(), nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("generate: %w", err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}

// Stream runs a streaming generation, yielding text chunks in model output
// order. Breaking out of the range cancels the generation. A terminal
// upstream error is yielded as the final pair.
func (c *Client) Stream(ctx context.Context, msgs []prompt.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.wait(ctx); err != nil {
			yield("", err)
			return
		}

		stopped := false
		opts := append(c.options(msgs), ai.WithStreaming(
			func(_ context.Context, chunk *ai.ModelResponseChunk) error {
				text := chunk.Text()
				if text == "" {
					return nil
				}
				if !yield(text, nil) {
					stopped = true
					return errStreamStopped
				}
				return nil
			},
		))

		if _, err := genkit.Generate(ctx, c.g, opts...); err != nil && !stopped {
			if !errors.Is(err, errStreamStopped) {
				yield("", fmt.Errorf("generate stream: %w", err))
			}
		}
	}
}

// wait applies the proactive rate limit, if configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// options translates prompt messages and sampling settings into Genkit
// generate options.
func (c *Client) options(msgs []prompt.Message) []ai.GenerateOption {
	messages := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			messages = append(messages, ai.NewSystemMessage(ai.NewTextPart(m.Content)))
		case prompt.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}

	return []ai.GenerateOption{
		ai.WithModel(c.model),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(c.temperature),
			MaxOutputTokens: c.maxTokens,
		}),
	}
}
