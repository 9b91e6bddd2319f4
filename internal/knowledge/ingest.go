// internal/knowledge/ingest.go

// Package knowledge implements the document store behind the knowledge
// base tools: PDF text extraction, chunking, embedding, and similarity
// search over a SQLite-backed document table.
package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Ingestor ties extraction, chunking, and embedding to the store.
type Ingestor struct {
	store   *Store
	embed   Embedder
	chunker *Chunker
	topK    int
	log     *slog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(store *Store, embed Embedder, chunker *Chunker, topK int, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, embed: embed, chunker: chunker, topK: topK, log: log}
}

// IngestPDF extracts the document's text, chunks it, and stores one
// embedded document per chunk. It returns the number of chunks added.
func (in *Ingestor) IngestPDF(ctx context.Context, r io.ReaderAt, size int64, category string) (int, error) {
	text, err := ExtractPDFText(r, size)
	if err != nil {
		return 0, err
	}

	chunks := in.chunker.Split(text)
	for i, chunk := range chunks {
		vec, err := in.embed.Embed(ctx, chunk)
		if err != nil {
			return i, fmt.Errorf("embed chunk %d of %d: %w", i+1, len(chunks), err)
		}
		if err := in.store.Add(ctx, Document{Content: chunk, Category: category, Embedding: vec}); err != nil {
			return i, fmt.Errorf("store chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}
	in.log.Info("ingested pdf", "chunks", len(chunks), "category", category)
	return len(chunks), nil
}

// SaveText embeds and stores a single piece of content.
func (in *Ingestor) SaveText(ctx context.Context, content, category string) error {
	vec, err := in.embed.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	if err := in.store.Add(ctx, Document{Content: content, Category: category, Embedding: vec}); err != nil {
		return fmt.Errorf("store content: %w", err)
	}
	return nil
}

// SearchText embeds the query and returns the matching documents'
// contents, best first.
func (in *Ingestor) SearchText(ctx context.Context, query string) ([]string, error) {
	vec, err := in.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := in.store.Search(ctx, vec, in.topK)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Content)
	}
	return out, nil
}
