package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTask  = errors.New("task id is already active")
	ErrTaskNotFound   = errors.New("task not found")
	ErrEngineStopped  = errors.New("engine is stopped")
	ErrInvalidRequest = errors.New("invalid request")
)

// BatchError reports a multi-file transfer that stopped at one file.
// Files transferred before it are kept and listed in Completed.
type BatchError struct {
	File      string
	Total     int
	Completed []string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to transfer %s after %d of %d files: %v", e.File, len(e.Completed), e.Total, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
