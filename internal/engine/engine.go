// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keshav-github-123/GraphMind/internal/types"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// Engine drives the model/tools loop for a thread. Each run walks the
// thread from its last checkpoint: the model is invoked with the turn
// history, requested tools are executed, and the cycle repeats until the
// model answers in text. Progress is checkpointed at every node boundary
// so an interrupted run resumes where it stopped.
type Engine struct {
	provider    llm.Provider
	checkpoints types.CheckpointStore
	registry    *Registry
	prompts     *PromptBuilder
	maxRounds   int
	log         *slog.Logger
}

// New creates an Engine with the given dependencies.
func New(
	provider llm.Provider,
	checkpoints types.CheckpointStore,
	registry *Registry,
	prompts *PromptBuilder,
	maxRounds int,
	log *slog.Logger,
) *Engine {
	return &Engine{
		provider:    provider,
		checkpoints: checkpoints,
		registry:    registry,
		prompts:     prompts,
		maxRounds:   maxRounds,
		log:         log,
	}
}

const eventBuffer = 32

// Run starts (or resumes) a run for the thread and returns its event
// channel. userText is the new user message; pass the empty string to
// resume a thread without adding one. Either way, tool executions left
// pending by an interrupted run are finished before the model sees the
// history again. The channel closes when the run stops; an EventError
// before the close means the run failed and the last checkpoint remains
// authoritative.
func (e *Engine) Run(ctx context.Context, threadID types.ThreadID, userText string) <-chan Event {
	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		e.execute(ctx, threadID, userText, events)
	}()
	return events
}

func (e *Engine) execute(ctx context.Context, threadID types.ThreadID, userText string, events chan<- Event) {
	// Node work runs on a detached context so a cancelled client never
	// leaves a half-finished node behind; cancellation is honored at
	// checkpoint boundaries instead.
	workCtx := context.WithoutCancel(ctx)

	cp, err := e.checkpoints.Load(workCtx, threadID)
	if err != nil {
		events <- Event{Type: EventError, Err: &PersistenceError{Op: "load", Err: err}}
		return
	}

	var turns []types.Turn
	if cp != nil {
		turns = cp.Turns
		// An interrupted tool batch is finished first, before any new
		// user turn is appended: the last assistant turn still carries
		// unanswered tool calls, and the model rejects a history where
		// those go straight into a user turn.
		if cp.NextNode == types.NodeTools {
			pending := pendingCalls(turns)
			if len(pending) > 0 {
				e.log.Info("resuming pending tool batch", "thread_id", threadID, "calls", len(pending))
				turns, err = e.runTools(workCtx, threadID, turns, pending, events)
				if err != nil {
					events <- Event{Type: EventError, Err: err}
					return
				}
			}
		}
	}

	if userText != "" {
		turns = append(turns, types.Turn{Role: types.RoleUser, Content: userText, At: time.Now().UTC()})
		if err := e.checkpoints.Save(workCtx, threadID, turns, types.NodeModel); err != nil {
			events <- Event{Type: EventError, Err: &PersistenceError{Op: "save", Err: err}}
			return
		}
	} else if cp == nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("thread %s: nothing to resume", threadID)}
		return
	}

	for round := 0; round < e.maxRounds; round++ {
		if ctx.Err() != nil {
			e.log.Info("run cancelled", "thread_id", threadID, "round", round)
			return
		}

		content, calls, err := e.invokeModel(workCtx, turns, events)
		if err != nil {
			events <- Event{Type: EventError, Err: &ModelInvocationError{Err: err}}
			return
		}

		if len(calls) > 0 {
			turns = append(turns, types.Turn{
				Role:      types.RoleAssistant,
				Content:   content,
				ToolCalls: calls,
				At:        time.Now().UTC(),
			})
			if err := e.checkpoints.Save(workCtx, threadID, turns, types.NodeTools); err != nil {
				events <- Event{Type: EventError, Err: &PersistenceError{Op: "save", Err: err}}
				return
			}

			turns, err = e.runTools(workCtx, threadID, turns, calls, events)
			if err != nil {
				events <- Event{Type: EventError, Err: err}
				return
			}
			continue
		}

		turns = append(turns, types.Turn{Role: types.RoleAssistant, Content: content, At: time.Now().UTC()})
		if err := e.checkpoints.Save(workCtx, threadID, turns, types.NodeDone); err != nil {
			events <- Event{Type: EventError, Err: &PersistenceError{Op: "save", Err: err}}
			return
		}
		return
	}

	events <- Event{Type: EventError, Err: fmt.Errorf("max tool rounds (%d) exceeded", e.maxRounds)}
}

// invokeModel streams one model response, forwarding content deltas as
// token events and returning the accumulated text and tool calls.
func (e *Engine) invokeModel(ctx context.Context, turns []types.Turn, events chan<- Event) (string, []types.ToolCall, error) {
	prompt := e.prompts.Build(turns, e.registry.Names())
	stream, err := e.provider.Stream(ctx, prompt, e.registry.AsLLMTools())
	if err != nil {
		return "", nil, err
	}

	var content strings.Builder
	var calls []types.ToolCall
	for delta := range stream {
		if delta.Err != nil {
			return "", nil, delta.Err
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			events <- Event{Type: EventToken, Content: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			calls = append(calls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return content.String(), calls, nil
}

// runTools executes a batch of tool calls. Start events fire in request
// order, executions run concurrently, then result turns are appended and
// end events fire in request order. The checkpoint written after the
// batch means a crash mid-batch re-executes the whole batch on resume:
// tool effects are at-least-once.
func (e *Engine) runTools(ctx context.Context, threadID types.ThreadID, turns []types.Turn, calls []types.ToolCall, events chan<- Event) ([]types.Turn, error) {
	for _, call := range calls {
		if _, ok := e.registry.Get(call.Name); !ok {
			return nil, &UnknownToolError{Name: call.Name}
		}
		events <- Event{Type: EventToolStart, Tool: call.Name}
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			started := time.Now()
			result, err := e.registry.Invoke(gctx, call.Name, call.Arguments)
			if err != nil {
				return err
			}
			e.log.Debug("tool executed",
				"thread_id", threadID,
				"tool", call.Name,
				"duration", time.Since(started))
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, call := range calls {
		turns = append(turns, types.Turn{
			Role:     types.RoleTool,
			Content:  results[i],
			CallID:   call.ID,
			ToolName: call.Name,
			At:       time.Now().UTC(),
		})
		events <- Event{Type: EventToolEnd, Tool: call.Name}
	}

	if err := e.checkpoints.Save(ctx, threadID, turns, types.NodeModel); err != nil {
		return nil, &PersistenceError{Op: "save", Err: err}
	}
	return turns, nil
}

// pendingCalls returns the tool calls from the last assistant turn that
// have no tool turn answering them yet.
func pendingCalls(turns []types.Turn) []types.ToolCall {
	last := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == types.RoleAssistant && len(turns[i].ToolCalls) > 0 {
			last = i
			break
		}
	}
	if last < 0 {
		return nil
	}

	answered := make(map[string]bool)
	for _, turn := range turns[last+1:] {
		if turn.Role == types.RoleTool {
			answered[turn.CallID] = true
		}
	}

	var pending []types.ToolCall
	for _, call := range turns[last].ToolCalls {
		if !answered[call.ID] {
			pending = append(pending, call)
		}
	}
	return pending
}
