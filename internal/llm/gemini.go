package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider with the Gemini API. Structured output
// uses the API's native JSON response schema.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGeminiProvider creates a Gemini provider. baseURL is optional and
// overrides the API endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, model string, maxTokens int32, baseURL string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, maxTokens: maxTokens}, nil
}

func (p *GeminiProvider) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if p.maxTokens > 0 {
		cfg.MaxOutputTokens = p.maxTokens
	}
	return cfg
}

func (p *GeminiProvider) GenerateObject(ctx context.Context, req Request) (json.RawMessage, error) {
	cfg := p.config(req.System)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseJsonSchema = req.Schema.JSON

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini API call: %w", err)
	}
	text := stripFences(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}
	return json.RawMessage(text), nil
}

func (p *GeminiProvider) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.config(system))
	if err != nil {
		return "", fmt.Errorf("gemini API call: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return text, nil
}
