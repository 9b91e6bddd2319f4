package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	ListenAddr    string `json:"listen_addr"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxToolRounds int    `json:"max_tool_rounds"`
	LLM           struct {
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
		EmbeddingModel   string  `json:"embedding_model"`
		SummaryMaxWords  int     `json:"summary_max_words"`
	} `json:"llm"`
	AlphaVantage struct {
		APIKey string `json:"api_key"`
	} `json:"alpha_vantage"`
	Brave struct {
		APIKey string `json:"api_key"`
	} `json:"brave"`
	Upload struct {
		Dir          string   `json:"dir"`
		MaxBytes     int64    `json:"max_bytes"`
		AllowedTypes []string `json:"allowed_types"`
	} `json:"upload"`
	Knowledge struct {
		ChunkSize    int `json:"chunk_size"`
		ChunkOverlap int `json:"chunk_overlap"`
		SearchTopK   int `json:"search_top_k"`
	} `json:"knowledge"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".graphmind"),
		ListenAddr:    ":8000",
		LogLevel:      "info",
		MaxConcurrent: 2,
		MaxToolRounds: 10,
	}
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	cfg.LLM.SummaryMaxWords = 6
	cfg.Upload.Dir = "uploads"
	cfg.Upload.MaxBytes = 10 << 20
	cfg.Upload.AllowedTypes = []string{".pdf"}
	cfg.Knowledge.ChunkSize = 1000
	cfg.Knowledge.ChunkOverlap = 100
	cfg.Knowledge.SearchTopK = 3

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if avKey := os.Getenv("ALPHA_VANTAGE_API_KEY"); avKey != "" {
		cfg.AlphaVantage.APIKey = avKey
	}
	if braveKey := os.Getenv("BRAVE_API_KEY"); braveKey != "" {
		cfg.Brave.APIKey = braveKey
	}

	return cfg, nil
}

// UploadPath returns the upload directory resolved under DataDir,
// creating it if needed.
func (c *Config) UploadPath() (string, error) {
	dir := c.Upload.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.DataDir, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	return dir, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
