package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"adept/internal/domain"
	"adept/internal/domain/ports/adapter"
	"adept/internal/extract"
	"adept/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIProviderAdapter = (*OpenAIAdapter)(nil)

const (
	toolSaveDetected = "save_detected_products"
	toolUpdateData   = "update_product_data"
)

// OpenAIAdapter implements adapter.AIProviderAdapter using Chat Completions
// API with a forced tool call, so the reply is always the structured
// envelope rather than prose.
type OpenAIAdapter struct {
	apiKey string
	base   string // e.g., https://api.openai.com/v1
	model  string
	client *http.Client
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIAdapter{
		apiKey: apiKey,
		base:   "https://api.openai.com/v1",
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenAIAdapter) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	if userPrompt == "" {
		userPrompt = extract.DefaultUserPrompt
	}
	userContent := []map[string]any{
		{"type": "text", "text": userPrompt},
		{"type": "image_url", "image_url": map[string]any{"url": imageURL, "detail": "high"}},
	}
	return o.callTool(ctx, toolSaveDetected, userContent)
}

func (o *OpenAIAdapter) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	instruction := extract.UpdateInstruction(string(existing), userPrompt)
	userContent := []map[string]any{{"type": "text", "text": instruction}}
	return o.callTool(ctx, toolUpdateData, userContent)
}

// callTool posts one chat completion with tool_choice pinned to the named
// tool and returns the raw arguments of the call the model made.
func (o *OpenAIAdapter) callTool(ctx context.Context, toolName string, userContent []map[string]any) (json.RawMessage, error) {
	reqBody := map[string]any{
		"model": o.model,
		"messages": []map[string]any{
			{"role": "system", "content": extract.SystemPrompt},
			{"role": "user", "content": userContent},
		},
		"tools": []map[string]any{{
			"type": "function",
			"function": map[string]any{
				"name":        toolName,
				"description": "Record the complete structured product data.",
				"parameters":  extract.ProductJSONSchema(),
			},
		}},
		"tool_choice": map[string]any{
			"type":     "function",
			"function": map[string]any{"name": toolName},
		},
	}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.client.Do(req)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveAICall("openai", o.model, o.countPromptTokens(userContent), latency, false)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.ObserveAICall("openai", o.model, o.countPromptTokens(userContent), latency, resp.StatusCode < 300)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	for _, c := range payload.Choices {
		for _, tc := range c.Message.ToolCalls {
			if tc.Function.Name == toolName && tc.Function.Arguments != "" {
				return json.RawMessage(tc.Function.Arguments), nil
			}
		}
	}
	return nil, errors.New("no tool call in completion")
}

// countPromptTokens is best-effort; image parts are not counted.
func (o *OpenAIAdapter) countPromptTokens(userContent []map[string]any) int {
	enc, err := tiktoken.EncodingForModel(o.model)
	if err != nil {
		return 0
	}
	total := len(enc.Encode(extract.SystemPrompt, nil, nil))
	for _, part := range userContent {
		if text, ok := part["text"].(string); ok {
			total += len(enc.Encode(text, nil, nil))
		}
	}
	return total
}
