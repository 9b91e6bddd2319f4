// internal/engine/events.go
package engine

// EventType identifies what a run event carries.
type EventType string

const (
	// EventToken carries a streamed fragment of the assistant's answer.
	EventToken EventType = "token"
	// EventToolStart announces a tool execution about to begin.
	EventToolStart EventType = "tool_start"
	// EventToolEnd announces a tool execution that finished.
	EventToolEnd EventType = "tool_end"
	// EventError is terminal; the run produced no final answer.
	EventError EventType = "error"
)

// Event is one item on a run's event channel. The channel closing marks
// the end of the run; an EventError before the close means it failed.
type Event struct {
	Type    EventType
	Content string
	Tool    string
	Err     error
}
