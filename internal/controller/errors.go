package controller

import (
	"errors"
	"fmt"
)

// ErrNoRuntime is returned by Rebuild when the widget runtime has not
// loaded. Callers must wait for the runtime before rebuilding.
var ErrNoRuntime = errors.New("controller: rebuild requires a loaded widget runtime")

// SnapshotError reports a persisted document the widget refused to load.
// The controller keeps running with an empty instance; recovery is up to
// whoever handles the error.
type SnapshotError struct {
	UID string
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("block %q: snapshot failed to load: %v", e.UID, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// CreateError reports a widget instance that could not be created.
// No retry is attempted.
type CreateError struct {
	UID string
	Err error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("block %q: widget creation failed: %v", e.UID, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}
