package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

func newTestClient(baseURL string) *Client {
	return New(&llm.Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		MaxTokens:   256,
		Temperature: 0.7,
	})
}

func TestCompleteText(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "148"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23}
		}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	resp, err := c.Complete(context.Background(), []llm.Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "What is 37 * 4?"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "148" {
		t.Errorf("expected content '148', got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 23 {
		t.Errorf("expected 23 total tokens, got %d", resp.Usage.TotalTokens)
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages in request, got %v", gotBody["messages"])
	}
}

func TestCompleteToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "calculator", "arguments": "{\"first_num\":37,\"second_num\":4,\"operation\":\"mul\"}"}}]
			}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 12, "total_tokens": 42}
		}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	tools := []llm.Tool{{
		Type: "function",
		Function: llm.Function{
			Name:        "calculator",
			Description: "Perform arithmetic",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"first_num":{"type":"number"}}}`),
		},
	}}
	resp, err := c.Complete(context.Background(), []llm.Message{{Role: "user", Content: "What is 37 * 4?"}}, tools)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Function.Name != "calculator" || call.ID != "call_1" {
		t.Errorf("unexpected tool call: %+v", call)
	}
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "rate_limit_error"}}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestStreamContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"chatcmpl-3","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"The answer "}}]}`,
			`{"id":"chatcmpl-3","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"is 148."}}]}`,
			`{"id":"chatcmpl-3","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	deltas, err := c.Stream(context.Background(), []llm.Message{{Role: "user", Content: "What is 37 * 4?"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var text strings.Builder
	for d := range deltas {
		if d.Err != nil {
			t.Fatalf("unexpected stream error: %v", d.Err)
		}
		text.WriteString(d.Content)
	}
	if text.String() != "The answer is 148." {
		t.Errorf("expected assembled text, got %q", text.String())
	}
}

func TestStreamToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"chatcmpl-4","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"calculator","arguments":""}}]}}]}`,
			`{"id":"chatcmpl-4","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"first_num\":37,"}}]}}]}`,
			`{"id":"chatcmpl-4","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"second_num\":4,\"operation\":\"mul\"}"}}]}}]}`,
			`{"id":"chatcmpl-4","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	deltas, err := c.Stream(context.Background(), []llm.Message{{Role: "user", Content: "What is 37 * 4?"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var calls []llm.ToolCall
	for d := range deltas {
		if d.Err != nil {
			t.Fatalf("unexpected stream error: %v", d.Err)
		}
		calls = append(calls, d.ToolCalls...)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 accumulated tool call, got %d", len(calls))
	}
	if calls[0].Function.Name != "calculator" {
		t.Errorf("expected calculator call, got %q", calls[0].Function.Name)
	}

	var args map[string]any
	if err := json.Unmarshal(calls[0].Function.Arguments, &args); err != nil {
		t.Fatalf("accumulated arguments are not valid JSON: %v", err)
	}
	if args["operation"] != "mul" {
		t.Errorf("unexpected arguments: %v", args)
	}
}
