// internal/engine/tools/knowledge.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keshav-github-123/GraphMind/internal/knowledge"
)

// SearchKnowledgeBase retrieves stored documents similar to a query.
type SearchKnowledgeBase struct {
	ingestor *knowledge.Ingestor
}

// NewSearchKnowledgeBase creates the knowledge search tool.
func NewSearchKnowledgeBase(ingestor *knowledge.Ingestor) *SearchKnowledgeBase {
	return &SearchKnowledgeBase{ingestor: ingestor}
}

func (s *SearchKnowledgeBase) Name() string { return "search_knowledge_base" }
func (s *SearchKnowledgeBase) Description() string {
	return "Search the knowledge base for information relevant to a query"
}

func (s *SearchKnowledgeBase) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "What to look for"}
		},
		"required": ["query"]
	}`)
}

func (s *SearchKnowledgeBase) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	contents, err := s.ingestor.SearchText(ctx, params.Query)
	if err != nil {
		return "", fmt.Errorf("search knowledge base: %w", err)
	}
	if len(contents) == 0 {
		return "No specific information found in the knowledge base.", nil
	}

	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		parts = append(parts, "Source Content: "+content)
	}
	return "Found the following information:\n" + strings.Join(parts, "\n\n"), nil
}

// SaveToKnowledgeBase stores a piece of information for later retrieval.
type SaveToKnowledgeBase struct {
	ingestor *knowledge.Ingestor
}

// NewSaveToKnowledgeBase creates the knowledge save tool.
func NewSaveToKnowledgeBase(ingestor *knowledge.Ingestor) *SaveToKnowledgeBase {
	return &SaveToKnowledgeBase{ingestor: ingestor}
}

func (s *SaveToKnowledgeBase) Name() string { return "save_to_knowledge_base" }
func (s *SaveToKnowledgeBase) Description() string {
	return "Save a piece of information to the knowledge base"
}

func (s *SaveToKnowledgeBase) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "Information to store"},
			"metadata_category": {"type": "string", "description": "Category label (default: general)"}
		},
		"required": ["content"]
	}`)
}

func (s *SaveToKnowledgeBase) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Content  string `json:"content"`
		Category string `json:"metadata_category"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Content == "" {
		return "", fmt.Errorf("content is required")
	}
	if params.Category == "" {
		params.Category = "general"
	}

	if err := s.ingestor.SaveText(ctx, params.Content, params.Category); err != nil {
		return fmt.Sprintf("Failed to save: %v", err), nil
	}
	return "Successfully saved to knowledge base.", nil
}
