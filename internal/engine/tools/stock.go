// internal/engine/tools/stock.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StockPrice fetches quote data from the Alpha Vantage API.
type StockPrice struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewStockPrice creates the stock price tool. An empty apiKey is allowed;
// executions then report the missing configuration to the model instead
// of failing at startup.
func NewStockPrice(apiKey string) *StockPrice {
	return &StockPrice{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co/query",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *StockPrice) Name() string { return "get_stock_price" }
func (s *StockPrice) Description() string {
	return "Get the latest stock quote for a ticker symbol"
}

func (s *StockPrice) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Ticker symbol, e.g. AAPL"}
		},
		"required": ["symbol"]
	}`)
}

func (s *StockPrice) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	if s.apiKey == "" {
		return jsonError("Alpha Vantage API key not configured"), nil
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", params.Symbol)
	q.Set("apikey", s.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return jsonError(fmt.Sprintf("Failed to fetch stock price: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonError(fmt.Sprintf("Failed to fetch stock price: %v", err)), nil
	}
	if resp.StatusCode != http.StatusOK {
		return jsonError(fmt.Sprintf("Failed to fetch stock price: status %d", resp.StatusCode)), nil
	}
	if !json.Valid(body) {
		return jsonError("Failed to fetch stock price: invalid response"), nil
	}
	return string(body), nil
}
