// Package pipeline runs the reconnaissance tasks in order.
//
// A Dispatcher owns a queue of Tasks built from the enabled stages. Tasks
// run one at a time on a worker goroutine; the first failure halts the
// queue. The interrupt controller is consulted before each task so a stop
// request never starts new work, and a second request abandons the task in
// progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Task names
const (
	TaskMapping          = "mapping"
	TaskParsing          = "parsing"
	TaskCredentialAttack = "credential-attack"
	TaskPathAttack       = "path-attack"
	TaskThumbnail        = "thumbnail"
	TaskValidation       = "validation"
	TaskReport           = "report"
)

// Task is one step of the pipeline
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrTaskFailed marks errors that halted the pipeline
var ErrTaskFailed = errors.New("task failed")

// ErrStopped is returned when an interrupt prevented queued tasks from running
var ErrStopped = errors.New("pipeline stopped")

// ErrForceStopped is returned when a second interrupt abandoned a running task
var ErrForceStopped = errors.New("pipeline force stopped")

// TaskError reports which task failed and why
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

// Unwrap exposes both ErrTaskFailed and the cause
func (e *TaskError) Unwrap() []error {
	return []error{ErrTaskFailed, e.Err}
}

// failf builds a TaskError for task from a format string
func failf(task, format string, args ...any) error {
	return &TaskError{Task: task, Err: fmt.Errorf(format, args...)}
}
