package models

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// buildChatParams converts an ADK request into chat completion parameters:
// {model, messages, max_tokens, temperature, tools}.
func buildChatParams(req *model.LLMRequest, defaultModel string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}
	if params.Model == "" {
		params.Model = defaultModel
	}

	var contents []*genai.Content
	if req.Config != nil && req.Config.SystemInstruction != nil {
		system := *req.Config.SystemInstruction
		system.Role = "system"
		contents = append(contents, &system)
	}
	contents = append(contents, req.Contents...)
	params.Messages = convertContentsToMessages(contents)

	if req.Config == nil {
		return params
	}
	if req.Config.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Config.Temperature))
	}
	if req.Config.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Config.MaxOutputTokens))
	}
	if req.Config.TopP != nil {
		params.TopP = openai.Float(float64(*req.Config.TopP))
	}
	if tools := convertTools(req.Config.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	return params
}

func convertTools(tools []*genai.Tool) []openai.ChatCompletionToolUnionParam {
	var out []openai.ChatCompletionToolUnionParam
	for _, t := range tools {
		if t == nil {
			continue
		}
		for _, fn := range t.FunctionDeclarations {
			def := openai.FunctionDefinitionParam{
				Name:       fn.Name,
				Parameters: functionParameters(fn),
			}
			if fn.Description != "" {
				def.Description = openai.String(fn.Description)
			}
			out = append(out, openai.ChatCompletionToolUnionParam{
				OfFunction: &openai.ChatCompletionFunctionToolParam{Function: def},
			})
		}
	}
	return out
}

// functionParameters renders the declaration's JSON schema as a plain map.
// Any value that marshals to a JSON object works, including *jsonschema.Schema.
func functionParameters(fn *genai.FunctionDeclaration) openai.FunctionParameters {
	if fn.ParametersJsonSchema == nil {
		return openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
	}
	if m, ok := fn.ParametersJsonSchema.(map[string]any); ok {
		return openai.FunctionParameters(m)
	}

	raw, err := json.Marshal(fn.ParametersJsonSchema)
	if err != nil {
		slog.Error("failed to marshal tool schema", "tool", fn.Name, "error", err.Error())
		return nil
	}
	params := make(map[string]any)
	if err := json.Unmarshal(raw, &params); err != nil {
		slog.Error("failed to decode tool schema", "tool", fn.Name, "error", err.Error())
		return nil
	}
	if _, ok := params["type"]; !ok {
		params["type"] = "object"
	}
	return openai.FunctionParameters(params)
}

func convertContentsToMessages(contents []*genai.Content) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, content := range contents {
		if content == nil {
			continue
		}

		var sb strings.Builder
		var toolResults []openai.ChatCompletionMessageParamUnion
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
			if fr := part.FunctionResponse; fr != nil && fr.ID != "" {
				payload, err := json.Marshal(fr.Response)
				if err != nil {
					slog.Error("failed to marshal function response", "error", err.Error())
					continue
				}
				toolResults = append(toolResults, openai.ToolMessage(string(payload), fr.ID))
			}
		}
		if len(toolResults) > 0 {
			messages = append(messages, toolResults...)
			continue
		}

		text := sb.String()
		switch content.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "model", "assistant":
			messages = append(messages, openai.AssistantMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}

	return messages
}
