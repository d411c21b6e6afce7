package models

import (
	"context"
	"fmt"

	"google.golang.org/adk/model"
)

// Provider names an OpenAI-compatible chat backend.
type Provider string

const (
	ProviderXAI        Provider = "xai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
)

const (
	xaiBaseURL        = "https://api.x.ai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// NewGrokModel creates a chat model served by x.ai (e.g. "grok-3-fast").
func NewGrokModel(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	return newChatModel(apiKey, xaiBaseURL, modelName, "grok-go")
}

// NewOpenRouterModel creates a chat model routed through OpenRouter.
// modelName is the OpenRouter slug, e.g. "x-ai/grok-3".
func NewOpenRouterModel(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	return newChatModel(apiKey, openRouterBaseURL, modelName, "openrouter-go")
}

// NewOpenAIModel creates a chat model on the default OpenAI endpoint.
func NewOpenAIModel(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	return newChatModel(apiKey, "", modelName, "openai-go")
}

// New picks the constructor for provider.
func New(ctx context.Context, provider Provider, modelName, apiKey string) (model.LLM, error) {
	switch provider {
	case ProviderXAI, "":
		return NewGrokModel(ctx, modelName, apiKey)
	case ProviderOpenRouter:
		return NewOpenRouterModel(ctx, modelName, apiKey)
	case ProviderOpenAI:
		return NewOpenAIModel(ctx, modelName, apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
