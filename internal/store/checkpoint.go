// internal/store/checkpoint.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/keshav-github-123/GraphMind/internal/types"
)

// CheckpointStore persists thread state snapshots in the checkpoints table.
type CheckpointStore struct {
	db *DB
}

// NewCheckpointStore creates a CheckpointStore backed by the given database.
func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Save upserts the thread's checkpoint in a single statement, advancing
// the version counter. The single-connection database plus the atomic
// upsert means concurrent saves for the same thread cannot interleave
// partially.
func (s *CheckpointStore) Save(ctx context.Context, id types.ThreadID, turns []types.Turn, next types.Node) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}

	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, turns, next_node, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			turns      = excluded.turns,
			next_node  = excluded.next_node,
			version    = checkpoints.version + 1,
			updated_at = excluded.updated_at`,
		string(id), string(data), string(next), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint for the thread, or nil if the thread
// has never been checkpointed.
func (s *CheckpointStore) Load(ctx context.Context, id types.ThreadID) (*types.Checkpoint, error) {
	row := s.db.db.QueryRowContext(ctx, `
		SELECT turns, next_node, version, updated_at
		FROM checkpoints WHERE thread_id = ?`, string(id))

	var turnsJSON, nextNode, updatedAt string
	var version int64
	if err := row.Scan(&turnsJSON, &nextNode, &version, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var turns []types.Turn
	if err := json.Unmarshal([]byte(turnsJSON), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}

	cp := &types.Checkpoint{
		ThreadID: id,
		Turns:    turns,
		NextNode: types.Node(nextNode),
		Version:  version,
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		cp.UpdatedAt = t
	}
	return cp, nil
}

// Delete removes the thread's checkpoint state.
func (s *CheckpointStore) Delete(ctx context.Context, id types.ThreadID) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Ping reports whether the backing database is reachable.
func (s *CheckpointStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
