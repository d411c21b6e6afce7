package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ErrNoResponse is returned when the model produced no final response.
var ErrNoResponse = errors.New("model returned no response")

// Generate runs a non-streaming request and returns the final response.
func Generate(ctx context.Context, llm model.LLM, req *model.LLMRequest) (*model.LLMResponse, error) {
	var final *model.LLMResponse
	for resp, err := range llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, err
		}
		if resp != nil && !resp.Partial {
			final = resp
		}
	}
	if final == nil {
		return nil, ErrNoResponse
	}
	if final.ErrorCode != "" {
		return nil, fmt.Errorf("model error %s: %s", final.ErrorCode, final.ErrorMessage)
	}
	return final, nil
}

// Text concatenates the text parts of a response.
func Text(resp *model.LLMResponse) string {
	if resp == nil || resp.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// FunctionCall returns the first call to the named function, or nil.
func FunctionCall(resp *model.LLMResponse, name string) *genai.FunctionCall {
	if resp == nil || resp.Content == nil {
		return nil
	}
	for _, part := range resp.Content.Parts {
		if part != nil && part.FunctionCall != nil && part.FunctionCall.Name == name {
			return part.FunctionCall
		}
	}
	return nil
}
