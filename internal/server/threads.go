// internal/server/threads.go
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/keshav-github-123/GraphMind/internal/types"
)

type threadEntry struct {
	ThreadID  string `json:"thread_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

type threadListResponse struct {
	Threads []threadEntry `json:"threads"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.summaries.List(r.Context())
	if err != nil {
		s.log.Error("list threads failed", "error", err)
		writeJSON(w, http.StatusOK, threadListResponse{Threads: []threadEntry{}, Error: err.Error()})
		return
	}

	entries := make([]threadEntry, 0, len(summaries))
	for _, summary := range summaries {
		entries = append(entries, threadEntry{
			ThreadID:  string(summary.ThreadID),
			Summary:   summary.Summary,
			CreatedAt: summary.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, threadListResponse{Threads: entries})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

const retrievalPreamble = "Found the following information:"

func (s *Server) handleThreadHistory(w http.ResponseWriter, r *http.Request) {
	threadID := types.ThreadID(mux.Vars(r)["thread_id"])

	cp, err := s.checkpoints.Load(r.Context(), threadID)
	if err != nil {
		s.log.Error("load history failed", "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusOK, historyResponse{Messages: []historyMessage{}, Error: err.Error()})
		return
	}

	messages := []historyMessage{}
	if cp != nil {
		for _, turn := range cp.Turns {
			if !displayable(turn.Content) {
				continue
			}
			role := "assistant"
			if turn.Role == types.RoleUser {
				role = "user"
			}
			messages = append(messages, historyMessage{Role: role, Content: turn.Content})
		}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages})
}

// displayable filters out internal turn content: empty turns, raw
// structured payloads, and retrieval echoes.
func displayable(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return false
	}
	if strings.HasPrefix(trimmed, retrievalPreamble) {
		return false
	}
	return true
}

type deleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := types.ThreadID(mux.Vars(r)["thread_id"])
	ctx := r.Context()

	if err := s.checkpoints.Delete(ctx, threadID); err != nil {
		s.log.Error("delete thread failed", "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, deleteResponse{Status: "error", Error: err.Error()})
		return
	}
	if err := s.summaries.Delete(ctx, threadID); err != nil {
		s.log.Error("delete thread summary failed", "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, deleteResponse{Status: "error", Error: err.Error()})
		return
	}

	s.log.Info("thread deleted", "thread_id", threadID)
	writeJSON(w, http.StatusOK, deleteResponse{
		Status:  "success",
		Message: fmt.Sprintf("Thread %s deleted", threadID),
	})
}
