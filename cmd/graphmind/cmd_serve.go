package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keshav-github-123/GraphMind/internal/engine"
	"github.com/keshav-github-123/GraphMind/internal/engine/tools"
	"github.com/keshav-github-123/GraphMind/internal/knowledge"
	"github.com/keshav-github-123/GraphMind/internal/server"
	"github.com/keshav-github-123/GraphMind/internal/store"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
	"github.com/keshav-github-123/GraphMind/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GraphMind server",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "graphmind.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	db, err := store.Open(filepath.Join(cfg.DataDir, "graphmind.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	checkpoints := store.NewCheckpointStore(db)
	summaries := store.NewSummaryStore(db)

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	// Knowledge base
	kstore, err := knowledge.OpenStore(filepath.Join(cfg.DataDir, "knowledge.db"))
	if err != nil {
		return fmt.Errorf("open knowledge store: %w", err)
	}
	defer kstore.Close()
	embedder := knowledge.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.EmbeddingModel)
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	ingestor := knowledge.NewIngestor(kstore, embedder, chunker, cfg.Knowledge.SearchTopK, slog.Default())

	// Tool registry
	registry := engine.NewRegistry()
	toolSet := []engine.Tool{
		tools.NewCalculator(),
		tools.NewPercentageCalc(),
		tools.NewSystemTime(),
		tools.NewStockPrice(cfg.AlphaVantage.APIKey),
		tools.NewWebSearch(cfg.Brave.APIKey),
		tools.NewSearchKnowledgeBase(ingestor),
		tools.NewSaveToKnowledgeBase(ingestor),
	}
	for _, tool := range toolSet {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	// Engine
	prompts, err := engine.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}
	eng := engine.New(provider, checkpoints, registry, prompts, cfg.MaxToolRounds, slog.Default())

	// HTTP server
	uploadDir, err := cfg.UploadPath()
	if err != nil {
		return err
	}
	srv := server.New(eng, provider, checkpoints, summaries, ingestor, cfg, uploadDir, slog.Default())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("graphmind started",
			"listen", cfg.ListenAddr,
			"data_dir", cfg.DataDir,
			"log_level", cfg.LogLevel,
			"max_concurrent", cfg.MaxConcurrent,
			"max_tool_rounds", cfg.MaxToolRounds,
			"llm_model", cfg.LLM.Model,
			"tools", len(toolSet),
			"pid_file", pidPath,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
