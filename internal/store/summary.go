// internal/store/summary.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/keshav-github-123/GraphMind/internal/types"
)

// SummaryStore persists thread titles in the thread_summaries table.
type SummaryStore struct {
	db *DB
}

// NewSummaryStore creates a SummaryStore backed by the given database.
func NewSummaryStore(db *DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// Put writes (or replaces) the thread's summary.
func (s *SummaryStore) Put(ctx context.Context, summary *types.ThreadSummary) error {
	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO thread_summaries (thread_id, summary, created_at)
		VALUES (?, ?, ?)`,
		string(summary.ThreadID), summary.Summary, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// List returns all thread summaries, newest first.
func (s *SummaryStore) List(ctx context.Context) ([]*types.ThreadSummary, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT thread_id, summary, created_at
		FROM thread_summaries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*types.ThreadSummary
	for rows.Next() {
		var threadID, summary, createdAt string
		if err := rows.Scan(&threadID, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		ts := &types.ThreadSummary{
			ThreadID: types.ThreadID(threadID),
			Summary:  summary,
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ts.CreatedAt = t
		}
		summaries = append(summaries, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// Delete removes the thread's summary.
func (s *SummaryStore) Delete(ctx context.Context, id types.ThreadID) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM thread_summaries WHERE thread_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}
