package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider with the Anthropic Messages API.
// Structured output is obtained by forcing a call to a single tool whose
// input schema is the requested schema.
type AnthropicProvider struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicProvider creates a provider with the given API key and model.
// Extra request options (base URL, retries) are passed to the SDK client.
func NewAnthropicProvider(apiKey, model string, maxTokens int64, extra ...option.RequestOption) *AnthropicProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &AnthropicProvider{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) GenerateObject(ctx context.Context, req Request) (json.RawMessage, error) {
	props, required := req.Schema.properties()
	tool := anthropic.ToolParam{
		Name:        req.Schema.Name,
		Description: anthropic.String(req.Schema.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: props,
			Required:   required,
		},
	}

	msg, err := p.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Schema.Name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == req.Schema.Name {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("no %s tool call in API response (stop reason %q)", req.Schema.Name, msg.StopReason)
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	msg, err := p.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in API response")
	}
	return sb.String(), nil
}
