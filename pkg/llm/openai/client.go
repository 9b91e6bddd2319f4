// Package openai implements llm.Provider on top of the official
// OpenAI Go SDK, targeting any OpenAI-compatible endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// streamBuffer is the delta channel capacity; large enough that slow
// consumers rarely stall the SSE read loop.
const streamBuffer = 32

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	api         openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config) *Client {
	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &Client{
		api:         openai.NewClient(opts...),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
	}
}

func (c *Client) buildParams(messages []llm.Message, tools []llm.Tool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}
	if c.temperature != 0 {
		params.Temperature = openai.Float(float64(c.temperature))
	}
	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			result[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.Tools),
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}
		case "tool":
			var callID string
			if len(msg.Tools) > 0 {
				callID = msg.Tools[0].ID
			}
			result[i] = openai.ToolMessage(msg.Content, callID)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

func convertToolCalls(calls []llm.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, call := range calls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: string(call.Function.Arguments),
			},
		})
	}
	return result
}

func convertTools(tools []llm.Tool) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		var parameters shared.FunctionParameters
		if err := json.Unmarshal(t.Function.Parameters, &parameters); err != nil {
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	completion, err := c.api.Chat.Completions.New(ctx, c.buildParams(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	message := completion.Choices[0].Message
	resp := &llm.Response{
		Content: message.Content,
		Usage: llm.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	for _, call := range message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			},
		})
	}
	return resp, nil
}

// Stream sends a chat completion request and returns a channel of incremental
// deltas. Content fragments are forwarded as they arrive; tool calls are
// assembled from their deltas and sent once, after the stream ends.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	params := c.buildParams(messages, tools)
	ch := make(chan llm.Delta, streamBuffer)

	go func() {
		defer close(ch)

		stream := c.api.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case ch <- llm.Delta{Content: content}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.Delta{Err: fmt.Errorf("chat stream: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		calls := accumulatedToolCalls(acc)
		if len(calls) > 0 {
			select {
			case ch <- llm.Delta{ToolCalls: calls}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// accumulatedToolCalls extracts assembled tool calls from the accumulator,
// skipping the empty placeholder entries it can produce for sparse indices.
func accumulatedToolCalls(acc openai.ChatCompletionAccumulator) []llm.ToolCall {
	if len(acc.Choices) == 0 {
		return nil
	}
	var calls []llm.ToolCall
	for _, call := range acc.Choices[0].Message.ToolCalls {
		if call.ID == "" && call.Function.Name == "" {
			continue
		}
		calls = append(calls, llm.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			},
		})
	}
	return calls
}
