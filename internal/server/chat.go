// internal/server/chat.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/keshav-github-123/GraphMind/internal/engine"
	"github.com/keshav-github-123/GraphMind/internal/types"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

const maxMessageChars = 10000

// chatRequest is the inbound WebSocket payload.
type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// wireEvent is the outbound WebSocket payload. Exactly one of the
// optional fields is set depending on Type.
type wireEvent struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Message  string `json:"message,omitempty"`
}

// handleChat drives one WebSocket connection. Messages on a connection
// are processed strictly sequentially; a new run never starts before the
// previous one finishes. Validation failures produce an error event and
// leave the connection open.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("websocket client connected", "remote", conn.RemoteAddr())

	// r.Context() is not cancelled for a hijacked connection, so runs get
	// a per-connection context cancelled when the client goes away. The
	// engine stops at its next checkpoint boundary.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Info("websocket client disconnected", "remote", conn.RemoteAddr())
			return
		}

		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if conn.WriteJSON(wireEvent{Type: "error", Message: fmt.Sprintf("Invalid request: %v", err)}) != nil {
				return
			}
			continue
		}
		if msg := strings.TrimSpace(req.Message); msg == "" || len([]rune(req.Message)) > maxMessageChars {
			if conn.WriteJSON(wireEvent{Type: "error", Message: "Invalid request: message must be 1 to 10000 characters"}) != nil {
				return
			}
			continue
		}

		if err := s.processMessage(ctx, cancel, conn, req); err != nil {
			return
		}
	}
}

// processMessage runs one user message to completion. A non-nil return
// means the connection is no longer usable.
func (s *Server) processMessage(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, req chatRequest) error {
	threadID := types.ThreadID(req.ThreadID)
	if threadID == "" {
		threadID = types.NewThreadID()
	}
	s.log.Info("message received", "thread_id", threadID, "chars", len(req.Message))

	if err := conn.WriteJSON(wireEvent{Type: "thread_id", ThreadID: string(threadID)}); err != nil {
		return err
	}

	// First message iff the thread has never been checkpointed.
	cp, err := s.checkpoints.Load(ctx, threadID)
	if err != nil {
		return conn.WriteJSON(wireEvent{Type: "error", Message: err.Error()})
	}
	isFirst := cp == nil

	if err := s.runs.Acquire(ctx, 1); err != nil {
		return err
	}
	events := s.engine.Run(ctx, threadID, req.Message)
	failed, err := s.forwardEvents(conn, events, cancel)
	s.runs.Release(1)
	if err != nil {
		return err
	}
	if failed {
		// The error event was already delivered; the connection stays
		// open for the next message.
		return nil
	}

	if isFirst {
		summary := s.generateTitle(ctx, req.Message)
		if err := s.summaries.Put(ctx, &types.ThreadSummary{ThreadID: threadID, Summary: summary}); err != nil {
			s.log.Error("save thread summary failed", "thread_id", threadID, "error", err)
		} else {
			s.log.Info("thread summary created", "thread_id", threadID, "summary", summary)
		}
	}

	return conn.WriteJSON(wireEvent{Type: "complete"})
}

// forwardEvents relays engine events to the client. It reports whether
// the run failed, and returns an error only when the connection broke.
// A broken connection cancels the run and drains the channel; the engine
// finishes its current node and stops at the next checkpoint boundary.
func (s *Server) forwardEvents(conn *websocket.Conn, events <-chan engine.Event, cancel context.CancelFunc) (failed bool, err error) {
	for ev := range events {
		var out wireEvent
		switch ev.Type {
		case engine.EventToken:
			out = wireEvent{Type: "token", Content: ev.Content}
		case engine.EventToolStart:
			out = wireEvent{Type: "status", Content: fmt.Sprintf("Calling tool: %s...", ev.Tool)}
		case engine.EventToolEnd:
			out = wireEvent{Type: "status", Content: fmt.Sprintf("Tool %s completed", ev.Tool)}
		case engine.EventError:
			failed = true
			s.log.Error("run failed", "error", ev.Err)
			out = wireEvent{Type: "error", Message: ev.Err.Error()}
		default:
			continue
		}
		if writeErr := conn.WriteJSON(out); writeErr != nil {
			cancel()
			for range events {
			}
			return failed, writeErr
		}
	}
	return failed, nil
}

const titleFallbackChars = 30

// generateTitle asks the model for a short thread title. Any failure
// falls back to a truncation of the message itself.
func (s *Server) generateTitle(ctx context.Context, message string) string {
	prompt := fmt.Sprintf(
		"Generate a short title (max %d words) for: %s. Return ONLY the text.",
		s.cfg.LLM.SummaryMaxWords, message)

	resp, err := s.provider.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			s.log.Error("title generation failed", "error", err)
		}
		runes := []rune(message)
		if len(runes) > titleFallbackChars {
			runes = runes[:titleFallbackChars]
		}
		return string(runes) + "..."
	}
	return strings.Trim(strings.TrimSpace(resp.Content), `"`)
}
