package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrProvidersExhausted signals that every provider in the chain failed or
// lacked a credential. This is the one generation failure allowed to reach
// callers; they must substitute a degraded answer.
var ErrProvidersExhausted = eris.New("llm: all providers exhausted or rate-limited")

var errNoChoices = eris.New("llm: response contained no choices")

const defaultCallTimeout = 10 * time.Second

// FallbackClient tries providers in order and returns the first success.
type FallbackClient struct {
	providers []Provider
	timeout   time.Duration
}

// NewFallbackClient creates a chain over the given providers. Order is
// significant: earlier entries are cheaper or better and are always tried
// first.
func NewFallbackClient(providers ...Provider) *FallbackClient {
	return &FallbackClient{
		providers: providers,
		timeout:   defaultCallTimeout,
	}
}

// WithTimeout overrides the per-provider call timeout.
func (c *FallbackClient) WithTimeout(d time.Duration) *FallbackClient {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Complete walks the chain. Providers without credentials are skipped
// without being invoked; a provider failure (timeout included) logs and
// advances. When the chain is exhausted, ErrProvidersExhausted is returned.
func (c *FallbackClient) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	for _, p := range c.providers {
		if !p.Available() {
			zap.L().Debug("llm: provider has no credential, skipping",
				zap.String("provider", p.Name()),
			)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := p.Complete(callCtx, prompt, systemInstruction)
		cancel()

		if err == nil {
			return text, nil
		}
		zap.L().Warn("llm: provider failed, moving to next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
	}
	return "", ErrProvidersExhausted
}
