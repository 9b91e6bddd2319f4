// internal/types/ids.go
package types

import "github.com/google/uuid"

type ThreadID string
type RequestID string

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}
