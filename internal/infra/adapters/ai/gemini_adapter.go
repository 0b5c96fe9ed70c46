package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"

	"adept/internal/domain"
	"adept/internal/domain/ports/adapter"
	"adept/internal/extract"
	"adept/internal/infra/metrics"
)

var _ adapter.AIProviderAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.AIProviderAdapter through the official
// SDK. Image bytes are fetched server-side and inlined, since the Gemini
// API does not dereference arbitrary URLs.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	http   *http.Client
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client: c,
		model:  model,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *GeminiAdapter) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	if userPrompt == "" {
		userPrompt = extract.DefaultUserPrompt
	}
	mime, data, err := g.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch flyer image: %w", err)
	}
	parts := []*genai.Part{
		{Text: userPrompt},
		{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
	}
	return g.callTool(ctx, toolSaveDetected, parts)
}

func (g *GeminiAdapter) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	instruction := extract.UpdateInstruction(string(existing), userPrompt)
	parts := []*genai.Part{{Text: instruction}}
	return g.callTool(ctx, toolUpdateData, parts)
}

func (g *GeminiAdapter) callTool(ctx context.Context, toolName string, parts []*genai.Part) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: extract.SystemPrompt}}},
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 toolName,
				Description:          "Record the complete structured product data.",
				ParametersJsonSchema: extract.ProductJSONSchema(),
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{toolName},
			},
		},
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	latency := int(time.Since(start).Milliseconds())
	promptTokens := 0
	if resp != nil && resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
	}
	metrics.ObserveAICall("gemini", g.model, promptTokens, latency, err == nil)
	if err != nil {
		return nil, err
	}

	for _, fc := range resp.FunctionCalls() {
		if fc.Name == toolName {
			return json.Marshal(fc.Args)
		}
	}
	return nil, errors.New("no tool call in response")
}

func (g *GeminiAdapter) fetchImage(ctx context.Context, url string) (mime string, data []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("image http %d", resp.StatusCode)
	}
	data, err = io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", nil, err
	}
	mime = resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, data, nil
}
