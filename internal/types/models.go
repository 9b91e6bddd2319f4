// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Node marks the engine's next step for a checkpointed thread.
type Node string

const (
	NodeModel Node = "model"
	NodeTools Node = "tools"
	NodeDone  Node = "done"
)

// ToolCall is a model-issued request to execute a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is one message in a thread's sequence. Turns are immutable once
// appended; assistant turns may carry tool calls, tool turns carry the
// result for exactly one call.
type Turn struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CallID    string     `json:"call_id,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	At        time.Time  `json:"at"`
}

// Checkpoint is a durable snapshot of a thread's turn sequence plus the
// engine's next-node marker. Version advances by one on every save.
type Checkpoint struct {
	ThreadID  ThreadID  `json:"thread_id"`
	Turns     []Turn    `json:"turns"`
	NextNode  Node      `json:"next_node"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadSummary is the short title generated from a thread's first user
// message. Its lifecycle is independent of the thread's checkpoints.
type ThreadSummary struct {
	ThreadID  ThreadID  `json:"thread_id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
