package provider

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parley-im/parley/internal/metrics"
)

// Chain tries providers in configured order. Each provider gets a bounded
// number of attempts with exponential backoff on transient errors before the
// chain falls over to the next one. Responses are never cached.
type Chain struct {
	providers   []Provider
	maxAttempts int
	timeout     time.Duration
}

// NewChain creates a fallback chain. maxAttempts bounds the calls made to a
// single provider per turn; timeout bounds each individual call.
func NewChain(providers []Provider, maxAttempts int, timeout time.Duration) *Chain {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Chain{providers: providers, maxAttempts: maxAttempts, timeout: timeout}
}

// Names returns the provider names in fallback order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete generates a reply for the request, falling over across providers.
// Returns ErrGenerationUnavailable once every provider is exhausted.
func (c *Chain) Complete(ctx context.Context, req Request) (Completion, error) {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	for _, p := range c.providers {
		text, err := c.completeWithRetry(ctx, p, req)
		if err == nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(p.Name(), "ok").Inc()
			return Completion{Text: text, Provider: p.Name()}, nil
		}
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		slog.Warn("provider exhausted, falling over", "provider", p.Name(), "error", err)
	}

	return Completion{}, ErrGenerationUnavailable
}

func (c *Chain) completeWithRetry(ctx context.Context, p Provider, req Request) (string, error) {
	var text string

	operation := func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		out, err := p.Complete(callCtx, req)
		if err != nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(p.Name(), "error").Inc()
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if out == "" {
			metrics.ProviderAttemptsTotal.WithLabelValues(p.Name(), "error").Inc()
			return errors.New("empty completion")
		}
		text = out
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return "", err
	}
	return text, nil
}

// Embed produces an embedding via the first provider that succeeds.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = ErrGenerationUnavailable
	}
	return nil, lastErr
}

// retryable reports whether an attempt error is worth retrying on the same
// provider. Auth and request-shape errors are not: the next attempt would
// fail identically.
func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400, 401, 403, 404:
			return false
		}
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Per-call deadline, malformed output, connection resets.
	return true
}
