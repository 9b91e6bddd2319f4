// internal/engine/prompt.go
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/keshav-github-123/GraphMind/internal/types"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// PromptBuilder assembles token-budgeted prompts from a thread's turns.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder for the given model.
// maxTokens is the model's context window size; reserve is held back for
// the model's response.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

func (b *PromptBuilder) turnTokens(turn types.Turn) int {
	n := b.countTokens(turn.Content)
	for _, tc := range turn.ToolCalls {
		n += b.countTokens(tc.Name)
		n += b.countTokens(string(tc.Arguments))
	}
	return n
}

// Build assembles a prompt from the thread's turns, newest-first within
// the token budget. The system prompt always fits; older turns drop first.
// The window never starts with a tool turn, so every tool result the model
// sees is preceded by the assistant turn that requested it.
func (b *PromptBuilder) Build(turns []types.Turn, toolNames []string) []llm.Message {
	sysPrompt := buildSystemPrompt(toolNames)
	budget := b.maxTokens - b.reserve - b.countTokens(sysPrompt)

	// Walk backwards from the newest turn until the budget is spent.
	start := len(turns)
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		cost := b.turnTokens(turns[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	// A tool turn without its requesting assistant turn is malformed
	// input for the model; skip forward past any stranded ones.
	for start < len(turns) && turns[start].Role == types.RoleTool {
		start++
	}

	messages := make([]llm.Message, 0, 1+len(turns)-start)
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	for _, turn := range turns[start:] {
		messages = append(messages, turnToMessage(turn))
	}
	return messages
}

func buildSystemPrompt(toolNames []string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Current time: ")
	sb.WriteString(time.Now().UTC().Format(time.RFC3339))
	sb.WriteString(".")
	if len(toolNames) > 0 {
		sb.WriteString(" You have access to the following tools: ")
		sb.WriteString(strings.Join(toolNames, ", "))
		sb.WriteString(". Use them when they help answer the question; otherwise answer directly.")
	}
	return sb.String()
}

func turnToMessage(turn types.Turn) llm.Message {
	switch turn.Role {
	case types.RoleAssistant:
		msg := llm.Message{Role: "assistant", Content: turn.Content}
		for _, tc := range turn.ToolCalls {
			msg.Tools = append(msg.Tools, llm.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return msg
	case types.RoleTool:
		return llm.Message{
			Role:    "tool",
			Content: turn.Content,
			Tools:   []llm.ToolCall{{ID: turn.CallID}},
		}
	default:
		return llm.Message{Role: "user", Content: turn.Content}
	}
}
