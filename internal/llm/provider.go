// Package llm wraps language-model providers behind a structured-generation
// client that always returns a decoded, validated value or an error.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Schema is a named JSON Schema describing the object a model must return.
type Schema struct {
	Name        string
	Description string
	JSON        map[string]any
}

// Request is a single generation request.
type Request struct {
	System string
	Prompt string
	Schema Schema
}

// Provider is a model backend. GenerateObject must return the raw JSON object
// produced under the provider's native schema-constrained mode.
// GenerateText returns unconstrained text.
type Provider interface {
	GenerateObject(ctx context.Context, req Request) (json.RawMessage, error)
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
