package adapter

import (
	"context"
	"encoding/json"
)

// AIProviderAdapter is the inference provider used by the in-process runner
// when no sandbox service is configured. Both methods return the raw
// `{"products": [...]}` envelope the provider was forced to emit; callers
// validate it against the product schema.
type AIProviderAdapter interface {
	// ExtractProducts reads the flyer image at imageURL and returns every
	// product it detects.
	ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error)

	// ReviseProducts applies a natural-language edit instruction to an
	// existing product envelope, preserving unmentioned fields verbatim.
	ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error)
}
