package ai

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"adept/internal/domain/ports/adapter"
)

var _ adapter.AIProviderAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIProviderAdapter for local/dev testing.
// It logs requests instead of calling a real provider and returns an empty
// product envelope.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	log.Printf("[noop-ai] extract from %s: %s\n", imageURL, userPrompt)
	return json.RawMessage(`{"products":[]}`), nil
}

func (a *NoopAIAdapter) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	log.Printf("[noop-ai] revise: %s\n", userPrompt)
	// Echo the existing data unchanged.
	wrapped, err := json.Marshal(map[string]json.RawMessage{"products": existing})
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}
