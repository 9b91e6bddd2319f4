// internal/server/chat_test.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keshav-github-123/GraphMind/internal/config"
	"github.com/keshav-github-123/GraphMind/internal/engine"
	"github.com/keshav-github-123/GraphMind/internal/knowledge"
	"github.com/keshav-github-123/GraphMind/internal/store"
	"github.com/keshav-github-123/GraphMind/internal/types"
	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// mockProvider streams canned responses and records Complete prompts.
type mockProvider struct {
	mu              sync.Mutex
	streamResponses []*llm.Response
	completeContent string
	streamCalls     int
	completePrompts []string
}

func (m *mockProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(messages) > 0 {
		m.completePrompts = append(m.completePrompts, messages[len(messages)-1].Content)
	}
	return &llm.Response{Content: m.completeContent}, nil
}

func (m *mockProvider) Stream(_ context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	m.mu.Lock()
	idx := m.streamCalls
	m.streamCalls++
	var resp *llm.Response
	if idx < len(m.streamResponses) {
		resp = m.streamResponses[idx]
	} else {
		resp = &llm.Response{Content: "fallback"}
	}
	m.mu.Unlock()

	ch := make(chan llm.Delta, 8)
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(resp.Content, " ") {
			if word != "" {
				ch <- llm.Delta{Content: word}
			}
		}
		if len(resp.ToolCalls) > 0 {
			ch <- llm.Delta{ToolCalls: resp.ToolCalls}
		}
	}()
	return ch, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		ListenAddr:    ":0",
		MaxConcurrent: 2,
		MaxToolRounds: 10,
	}
	cfg.LLM.Model = "gpt-4"
	cfg.LLM.SummaryMaxWords = 6
	cfg.Upload.MaxBytes = 10 << 20
	cfg.Upload.AllowedTypes = []string{".pdf"}
	cfg.Knowledge.ChunkSize = 1000
	cfg.Knowledge.ChunkOverlap = 100
	cfg.Knowledge.SearchTopK = 3
	return cfg
}

func newTestServer(t *testing.T, provider llm.Provider, tools ...engine.Tool) (*httptest.Server, *Server) {
	t.Helper()
	cfg := testConfig(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open(filepath.Join(cfg.DataDir, "graphmind.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	checkpoints := store.NewCheckpointStore(db)
	summaries := store.NewSummaryStore(db)

	kstore, err := knowledge.OpenStore(filepath.Join(cfg.DataDir, "knowledge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kstore.Close() })
	ingestor := knowledge.NewIngestor(kstore, fixedEmbedder{},
		knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap),
		cfg.Knowledge.SearchTopK, log)

	registry := engine.NewRegistry()
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	prompts, err := engine.NewPromptBuilder(cfg.LLM.Model, 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(provider, checkpoints, registry, prompts, cfg.MaxToolRounds, log)

	srv := New(eng, provider, checkpoints, summaries, ingestor, cfg, cfg.DataDir, log)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, srv
}

func dialChat(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wireEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

// readUntil collects events up to and including the first of the given
// terminal types.
func readUntil(t *testing.T, conn *websocket.Conn, terminals ...string) []wireEvent {
	t.Helper()
	var events []wireEvent
	for {
		ev := readEvent(t, conn)
		events = append(events, ev)
		for _, terminal := range terminals {
			if ev.Type == terminal {
				return events
			}
		}
	}
}

func TestChatTextFlow(t *testing.T) {
	provider := &mockProvider{
		streamResponses: []*llm.Response{{Content: "Hello there!"}},
		completeContent: `"Greeting"`,
	}
	ts, _ := newTestServer(t, provider)
	conn := dialChat(t, ts)

	if err := conn.WriteJSON(map[string]string{"message": "hi"}); err != nil {
		t.Fatal(err)
	}
	events := readUntil(t, conn, "complete", "error")

	if events[0].Type != "thread_id" || events[0].ThreadID == "" {
		t.Fatalf("expected minted thread_id first, got %+v", events[0])
	}

	var text strings.Builder
	for _, ev := range events {
		switch ev.Type {
		case "token":
			text.WriteString(ev.Content)
		case "error":
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}
	if text.String() != "Hello there!" {
		t.Errorf("expected streamed answer, got %q", text.String())
	}
	if events[len(events)-1].Type != "complete" {
		t.Errorf("expected terminal complete, got %+v", events[len(events)-1])
	}
}

func TestChatEchoesSuppliedThreadID(t *testing.T) {
	provider := &mockProvider{streamResponses: []*llm.Response{{Content: "ok"}, {Content: "ok again"}}}
	ts, _ := newTestServer(t, provider)
	conn := dialChat(t, ts)

	if err := conn.WriteJSON(map[string]string{"message": "first"}); err != nil {
		t.Fatal(err)
	}
	events := readUntil(t, conn, "complete")
	threadID := events[0].ThreadID

	if err := conn.WriteJSON(map[string]string{"message": "second", "thread_id": threadID}); err != nil {
		t.Fatal(err)
	}
	events = readUntil(t, conn, "complete")
	if events[0].ThreadID != threadID {
		t.Errorf("expected thread_id %q echoed, got %q", threadID, events[0].ThreadID)
	}
}

func TestChatValidation(t *testing.T) {
	provider := &mockProvider{}
	ts, _ := newTestServer(t, provider)
	conn := dialChat(t, ts)

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `not json at all`},
		{"missing message", `{}`},
		{"empty message", `{"message":""}`},
		{"whitespace message", `{"message":"   "}`},
		{"oversized message", `{"message":"` + strings.Repeat("x", 10001) + `"}`},
		{"non-string thread_id", `{"message":"hi","thread_id":42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.payload)); err != nil {
				t.Fatal(err)
			}
			ev := readEvent(t, conn)
			if ev.Type != "error" {
				t.Fatalf("expected error event, got %+v", ev)
			}
		})
	}

	// Connection still usable after rejections.
	provider.mu.Lock()
	provider.streamResponses = []*llm.Response{{Content: "still here"}}
	provider.streamCalls = 0
	provider.mu.Unlock()
	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatal(err)
	}
	events := readUntil(t, conn, "complete", "error")
	if events[len(events)-1].Type != "complete" {
		t.Errorf("expected connection to recover, got %+v", events[len(events)-1])
	}
}

func TestChatToolStatusEvents(t *testing.T) {
	provider := &mockProvider{
		streamResponses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{{
				ID:   "tc1",
				Type: "function",
				Function: llm.FunctionCall{
					Name:      "calculator",
					Arguments: json.RawMessage(`{"first_num":37,"second_num":4,"operation":"mul"}`),
				},
			}}},
			{Content: "148"},
		},
	}
	ts, _ := newTestServer(t, provider, calcTool{})
	conn := dialChat(t, ts)

	if err := conn.WriteJSON(map[string]string{"message": "What is 37 * 4?"}); err != nil {
		t.Fatal(err)
	}
	events := readUntil(t, conn, "complete", "error")

	var statuses []string
	for _, ev := range events {
		if ev.Type == "status" {
			statuses = append(statuses, ev.Content)
		}
		if ev.Type == "error" {
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 status events, got %v", statuses)
	}
	if statuses[0] != "Calling tool: calculator..." {
		t.Errorf("unexpected start status: %q", statuses[0])
	}
	if statuses[1] != "Tool calculator completed" {
		t.Errorf("unexpected end status: %q", statuses[1])
	}
}

func TestChatFirstMessageGeneratesTitle(t *testing.T) {
	provider := &mockProvider{
		streamResponses: []*llm.Response{{Content: "answer one"}, {Content: "answer two"}},
		completeContent: `"Math homework help"`,
	}
	ts, srv := newTestServer(t, provider)
	conn := dialChat(t, ts)

	if err := conn.WriteJSON(map[string]string{"message": "help me with math"}); err != nil {
		t.Fatal(err)
	}
	events := readUntil(t, conn, "complete")
	threadID := events[0].ThreadID

	summaries, err := srv.summaries.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary after first message, got %d", len(summaries))
	}
	if string(summaries[0].ThreadID) != threadID {
		t.Errorf("summary thread mismatch: %s vs %s", summaries[0].ThreadID, threadID)
	}
	// Surrounding quotes from the model are stripped.
	if summaries[0].Summary != "Math homework help" {
		t.Errorf("unexpected title: %q", summaries[0].Summary)
	}

	provider.mu.Lock()
	titleCalls := len(provider.completePrompts)
	provider.mu.Unlock()
	if titleCalls != 1 {
		t.Fatalf("expected 1 title call, got %d", titleCalls)
	}

	// Second message on the same thread must not regenerate the title.
	if err := conn.WriteJSON(map[string]string{"message": "more math", "thread_id": threadID}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, "complete")

	provider.mu.Lock()
	titleCalls = len(provider.completePrompts)
	provider.mu.Unlock()
	if titleCalls != 1 {
		t.Errorf("title regenerated on second message: %d calls", titleCalls)
	}
}

func TestChatDisconnectStopsRun(t *testing.T) {
	// Every model round requests another tool call; left alone the run
	// would go on for 50 rounds and then finish on the fallback answer.
	responses := make([]*llm.Response, 50)
	for i := range responses {
		responses[i] = &llm.Response{ToolCalls: []llm.ToolCall{{
			ID:   fmt.Sprintf("tc%d", i),
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "slow",
				Arguments: json.RawMessage(`{}`),
			},
		}}}
	}
	provider := &mockProvider{streamResponses: responses}
	ts, srv := newTestServer(t, provider, slowTool{delay: 10 * time.Millisecond})
	conn := dialChat(t, ts)

	if err := conn.WriteJSON(map[string]string{"message": "keep going", "thread_id": "th-gone"}); err != nil {
		t.Fatal(err)
	}
	readEvent(t, conn) // thread_id
	conn.Close()

	// Wait for the run to settle after the broken connection is noticed.
	prev := -1
	settled := false
	for i := 0; i < 50; i++ {
		provider.mu.Lock()
		n := provider.streamCalls
		provider.mu.Unlock()
		if n > 0 && n == prev {
			settled = true
			break
		}
		prev = n
		time.Sleep(100 * time.Millisecond)
	}
	if !settled {
		t.Fatal("run never settled after disconnect")
	}

	provider.mu.Lock()
	rounds := provider.streamCalls
	provider.mu.Unlock()
	if rounds > len(responses) {
		t.Fatalf("run reached the fallback answer despite disconnect (%d rounds)", rounds)
	}

	// The run stopped at a checkpoint boundary, not at terminal.
	cp, err := srv.checkpoints.Load(context.Background(), types.ThreadID("th-gone"))
	if err != nil {
		t.Fatal(err)
	}
	if cp == nil {
		t.Fatal("expected a checkpoint")
	}
	if cp.NextNode != types.NodeModel {
		t.Errorf("expected run stopped at model boundary, got %s", cp.NextNode)
	}
}

// slowTool sleeps to simulate tool latency.
type slowTool struct{ delay time.Duration }

func (s slowTool) Name() string                { return "slow" }
func (s slowTool) Description() string         { return "takes a while" }
func (s slowTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s slowTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	time.Sleep(s.delay)
	return "done", nil
}

// calcTool is a minimal in-test calculator.
type calcTool struct{}

func (calcTool) Name() string        { return "calculator" }
func (calcTool) Description() string { return "multiply numbers" }
func (calcTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"first_num":{"type":"number"},"second_num":{"type":"number"},"operation":{"type":"string"}},"required":["first_num","second_num","operation"]}`)
}

func (calcTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	return `{"result":148}`, nil
}
