// internal/server/server.go

// Package server exposes the chat engine over HTTP: a WebSocket endpoint
// for conversations, REST endpoints for thread management, and a PDF
// upload endpoint feeding the knowledge base.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/keshav-github-123/GraphMind/internal/config"
	"github.com/keshav-github-123/GraphMind/internal/engine"
	"github.com/keshav-github-123/GraphMind/internal/knowledge"
	"github.com/keshav-github-123/GraphMind/internal/types"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// Server routes HTTP traffic to the engine and stores.
type Server struct {
	engine      *engine.Engine
	provider    llm.Provider
	checkpoints types.CheckpointStore
	summaries   types.SummaryStore
	ingestor    *knowledge.Ingestor
	cfg         *config.Config
	uploadDir   string
	runs        *semaphore.Weighted
	upgrader    websocket.Upgrader
	router      *mux.Router
	log         *slog.Logger
}

// New creates a Server with all routes registered.
func New(
	eng *engine.Engine,
	provider llm.Provider,
	checkpoints types.CheckpointStore,
	summaries types.SummaryStore,
	ingestor *knowledge.Ingestor,
	cfg *config.Config,
	uploadDir string,
	log *slog.Logger,
) *Server {
	s := &Server{
		engine:      eng,
		provider:    provider,
		checkpoints: checkpoints,
		summaries:   summaries,
		ingestor:    ingestor,
		cfg:         cfg,
		uploadDir:   uploadDir,
		runs:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		router: mux.NewRouter(),
		log:    log,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/chat", s.handleChat)
	s.router.HandleFunc("/threads", s.handleListThreads).Methods(http.MethodGet)
	s.router.HandleFunc("/threads/history/{thread_id}", s.handleThreadHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/threads/{thread_id}", s.handleDeleteThread).Methods(http.MethodDelete)
	s.router.HandleFunc("/upload-pdf", s.handleUploadPDF).Methods(http.MethodPost)
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.checkpoints.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		s.log.Error("health check failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
