// internal/engine/errors.go
package engine

import "fmt"

// UnknownToolError indicates the model requested a tool that is not
// registered. The run cannot make progress past it.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ModelInvocationError wraps a provider failure. The run aborts and the
// last saved checkpoint remains authoritative.
type ModelInvocationError struct {
	Err error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation: %v", e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// PersistenceError wraps a checkpoint store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
