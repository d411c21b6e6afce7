// Package models adapts OpenAI-compatible chat endpoints to the ADK model interface.
package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// chatModel talks to any OpenAI-compatible chat completions API.
type chatModel struct {
	client    *openai.Client
	name      string
	userAgent string
}

type toolCallBuilder struct {
	ID   string
	Name string
	Args strings.Builder
}

func newChatModel(apiKey, baseURL, modelName, agent string) (*chatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	userAgent := fmt.Sprintf("%s/1.0.0 go/%s", agent, strings.TrimPrefix(runtime.Version(), "go"))
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("User-Agent", userAgent),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &chatModel{
		client:    &client,
		name:      modelName,
		userAgent: userAgent,
	}, nil
}

func (m *chatModel) Name() string {
	return m.name
}

func (m *chatModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	ensureUserTurn(req)

	if stream {
		return m.generateStream(ctx, req)
	}
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *chatModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildChatParams(req, m.name)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("failed to call llm API", "model", params.Model, "error", err.Error())
		return nil, fmt.Errorf("failed to call chat completions API: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completions API returned no choices")
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: "model"}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, genai.NewPartFromText(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		if call.Type != "function" || call.Function.Name == "" {
			continue
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Function.Name,
				Args: parseFunctionArgs(call.Function.Arguments),
			},
		})
	}

	if choice.FinishReason == "length" {
		slog.Warn("llm reply truncated by max tokens", "model", params.Model)
	}
	return &model.LLMResponse{
		Content:      content,
		TurnComplete: true,
	}, nil
}

func (m *chatModel) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params := buildChatParams(req, m.name)

		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer func() {
			if err := stream.Close(); err != nil {
				slog.Error("failed to close stream", "error", err.Error())
			}
		}()

		pending := make(map[int64]*toolCallBuilder)
		var text strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if delta := choice.Delta.Content; delta != "" {
				text.WriteString(delta)
				partial := &model.LLMResponse{
					Content: genai.NewContentFromText(delta, genai.RoleModel),
					Partial: true,
				}
				if !yield(partial, nil) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				b, ok := pending[tc.Index]
				if !ok {
					b = &toolCallBuilder{}
					pending[tc.Index] = b
				}
				if tc.ID != "" {
					b.ID = tc.ID
				}
				if tc.Function.Name != "" {
					b.Name = tc.Function.Name
				}
				b.Args.WriteString(tc.Function.Arguments)
			}

			if choice.FinishReason == "" {
				continue
			}
			final := &model.LLMResponse{
				Content:      &genai.Content{Role: "model"},
				TurnComplete: true,
			}
			if s := strings.TrimSpace(text.String()); s != "" {
				final.Content.Parts = append(final.Content.Parts, genai.NewPartFromText(s))
			}
			final.Content.Parts = append(final.Content.Parts, toolCallParts(pending)...)
			yield(final, nil)
			return
		}

		if err := stream.Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				yield(nil, fmt.Errorf("context cancelled: %w", err))
				return
			}
			slog.Error("failed to stream llm API", "model", params.Model, "error", err.Error())
			yield(nil, fmt.Errorf("stream error: %w", err))
		}
	}
}

func toolCallParts(pending map[int64]*toolCallBuilder) []*genai.Part {
	indices := make([]int64, 0, len(pending))
	for idx := range pending {
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	parts := make([]*genai.Part, 0, len(indices))
	for _, idx := range indices {
		b := pending[idx]
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   b.ID,
				Name: b.Name,
				Args: parseFunctionArgs(b.Args.String()),
			},
		})
	}
	return parts
}

// ensureUserTurn makes sure the conversation ends on a user turn, which
// OpenAI-compatible endpoints expect.
func ensureUserTurn(req *model.LLMRequest) {
	if len(req.Contents) == 0 {
		req.Contents = append(req.Contents, genai.NewContentFromText("Handle the requests as specified in the System Instruction.", genai.RoleUser))
		return
	}
	if last := req.Contents[len(req.Contents)-1]; last != nil && last.Role == "model" {
		req.Contents = append(req.Contents, genai.NewContentFromText("Continue the conversation.", genai.RoleUser))
	}
}

func parseFunctionArgs(raw string) map[string]any {
	args := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Error("failed to parse function arguments", "error", err.Error(), "json", raw)
		return make(map[string]any)
	}
	return args
}
