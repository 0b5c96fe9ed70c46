package ai

import (
	"context"
	"encoding/json"
	"errors"

	"adept/internal/domain/ports/adapter"
	"adept/internal/infra/logging"
)

var _ adapter.AIProviderAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter tries each configured provider in order and falls through
// to the next one on failure, so a single provider outage does not fail
// the whole job.
type MultiAIAdapter struct {
	providers []adapter.AIProviderAdapter
}

func NewMultiAIAdapter(providers ...adapter.AIProviderAdapter) (*MultiAIAdapter, error) {
	live := make([]adapter.AIProviderAdapter, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return nil, errors.New("no ai providers configured")
	}
	return &MultiAIAdapter{providers: live}, nil
}

func (m *MultiAIAdapter) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	return m.each(ctx, func(p adapter.AIProviderAdapter) (json.RawMessage, error) {
		return p.ExtractProducts(ctx, imageURL, userPrompt)
	})
}

func (m *MultiAIAdapter) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	return m.each(ctx, func(p adapter.AIProviderAdapter) (json.RawMessage, error) {
		return p.ReviseProducts(ctx, existing, userPrompt)
	})
}

func (m *MultiAIAdapter) each(ctx context.Context, call func(adapter.AIProviderAdapter) (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error
	for i, p := range m.providers {
		out, err := call(p)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(m.providers)-1 {
			logging.With(ctx).Warn().Err(err).Int("provider", i).Msg("ai provider failed, trying next")
		}
	}
	return nil, lastErr
}
