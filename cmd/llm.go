package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hackreview/judge/internal/llm"
)

// newProvider creates the configured model provider. API keys fall back to
// the vendor SDKs' usual env vars.
func newProvider(ctx context.Context) (llm.Provider, error) {
	maxTokens := viper.GetInt("llm.max_tokens")

	switch name := viper.GetString("llm.provider"); name {
	case "anthropic", "":
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic.api_key is not set (JUDGE_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY)")
		}
		return llm.NewAnthropicProvider(apiKey, viper.GetString("anthropic.model"), int64(maxTokens)), nil
	case "gemini":
		apiKey := viper.GetString("gemini.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini.api_key is not set (JUDGE_GEMINI_API_KEY or GEMINI_API_KEY)")
		}
		return llm.NewGeminiProvider(ctx, apiKey, viper.GetString("gemini.model"), int32(maxTokens), "")
	default:
		return nil, fmt.Errorf("unknown llm.provider %q (want anthropic or gemini)", name)
	}
}

// newGenerator wraps the configured provider with retries, fallback and repair.
func newGenerator(ctx context.Context) (*llm.Structured, error) {
	p, err := newProvider(ctx)
	if err != nil {
		return nil, err
	}
	return llm.NewStructured(p, viper.GetInt("llm.max_attempts"), logger), nil
}
