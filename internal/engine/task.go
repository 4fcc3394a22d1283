// Package engine runs the worker side of the fleet: it leases stores, drives
// each store's ingestion tasks round-robin, and reports health.
package engine

import (
	"context"
	"fmt"
)

// Status is a task or store process state. A task starts InProgress and moves
// to exactly one terminal state; Step is never called again after that.
type Status int

const (
	StatusInProgress Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Task is one idempotent ingestion step for a single store. Step does a small
// bounded amount of work per call; the task decides what is left by probing
// staging state, so a restarted process resumes where the last one stopped.
type Task interface {
	Name() string
	Status() Status
	Step(ctx context.Context) error
}

// TaskError tags a failure with the task that produced it so the log row
// lands under the right source.
type TaskError struct {
	Source string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError wraps err with the task's name.
func NewTaskError(source string, err error) *TaskError {
	return &TaskError{Source: source, Err: err}
}
