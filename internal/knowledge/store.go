// internal/knowledge/store.go
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Document is a stored knowledge base entry with its embedding.
type Document struct {
	ID        string
	Content   string
	Category  string
	Embedding []float64
	CreatedAt time.Time
}

// Store persists documents and their embeddings in SQLite. Similarity
// search loads candidate embeddings and ranks them by cosine similarity
// in memory; at knowledge base scale that beats shipping a vector index.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the knowledge database at path.
func OpenStore(path string) (*Store, error) {
	p := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			category   TEXT NOT NULL,
			embedding  TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a document. A zero ID gets a fresh one.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	embedding, err := json.Marshal(doc.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, content, category, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Content, doc.Category, string(embedding),
		doc.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Search returns the topK documents most similar to the query embedding,
// best first. Documents with a zero-magnitude embedding are skipped.
func (s *Store) Search(ctx context.Context, query []float64, topK int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, embedding, created_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var doc Document
		var embedding, createdAt string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Category, &embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &doc.Embedding); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			doc.CreatedAt = t
		}
		score, ok := cosineSimilarity(query, doc.Embedding)
		if !ok {
			continue
		}
		candidates = append(candidates, scored{doc: doc, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.doc)
	}
	return out, nil
}

func cosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
