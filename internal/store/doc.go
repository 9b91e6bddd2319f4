package store

import "github.com/keshav-github-123/GraphMind/internal/types"

// Compile-time interface compliance checks.
var _ types.CheckpointStore = (*CheckpointStore)(nil)
var _ types.SummaryStore = (*SummaryStore)(nil)
