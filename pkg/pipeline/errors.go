package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel configuration and programming errors, raised on the calling side
// rather than surfaced through a worker's result stream.
var (
	ErrPipelineMustBeSet = errors.New("pipeline must be set")
	ErrInputMustBeSet    = errors.New("input stage must be set")
	ErrClosedWrite       = errors.New("put on a closed channel")
	ErrWrongCardinality  = errors.New("pipeline did not produce exactly one item")
	ErrConfigInvalid     = errors.New("invalid stage configuration")
	ErrAlreadyStarted    = errors.New("pipeline already started")
)

// WorkerError captures a single worker's failure: which worker raised it,
// what kind of error it was, and the underlying message. It travels inside
// an ERR marker and is what TaskException is built from once it reaches the
// terminal consumer.
type WorkerError struct {
	WorkerID string
	Kind     string
	Message  string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Message)
}

// newWorkerError wraps an arbitrary error raised by user code into a
// WorkerError, preserving an already-classified kind if the error carries
// one (e.g. it was forwarded from an upstream stage).
func newWorkerError(workerID string, err error) *WorkerError {
	var we *WorkerError
	if errors.As(err, &we) {
		return &WorkerError{WorkerID: we.WorkerID, Kind: we.Kind, Message: we.Message}
	}

	return &WorkerError{
		WorkerID: workerID,
		Kind:     fmt.Sprintf("%T", errors.Cause(err)),
		Message:  err.Error(),
	}
}

// TaskException is the only error kind the external API raises from
// Results/Execute. Its message names the worker that raised the error and
// the underlying error kind, matching the form:
//
//	The task "<worker_id>" raised <Kind>(<message>)
type TaskException struct {
	WorkerID string
	Kind     string
	Message  string
}

func newTaskException(we *WorkerError) *TaskException {
	return &TaskException{WorkerID: we.WorkerID, Kind: we.Kind, Message: we.Message}
}

func (e *TaskException) Error() string {
	return fmt.Sprintf("The task %q raised %s(%s)", e.WorkerID, e.Kind, e.Message)
}
