// internal/types/interfaces.go
package types

import "context"

// CheckpointStore persists thread state snapshots. Writes for a given
// thread are linearized: no two concurrent saves for the same thread may
// interleave partially.
type CheckpointStore interface {
	// Save writes a checkpoint for the thread, advancing its version.
	Save(ctx context.Context, id ThreadID, turns []Turn, next Node) error

	// Load returns the latest checkpoint for the thread, or nil if none
	// has ever been written.
	Load(ctx context.Context, id ThreadID) (*Checkpoint, error)

	// Delete removes all checkpoint state for the thread.
	Delete(ctx context.Context, id ThreadID) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// SummaryStore persists thread titles for listing.
type SummaryStore interface {
	Put(ctx context.Context, summary *ThreadSummary) error
	List(ctx context.Context) ([]*ThreadSummary, error)
	Delete(ctx context.Context, id ThreadID) error
}
