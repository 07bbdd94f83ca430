package deployment

import (
	"errors"
	"fmt"
)

// ErrorKind classifies deploy-path failures.
type ErrorKind string

const (
	// KindCorruptArchive: the archive cannot be unpacked or lacks a
	// descriptor.
	KindCorruptArchive ErrorKind = "corrupt_archive"
	// KindBuildFailure: descriptor present but instance construction
	// failed.
	KindBuildFailure ErrorKind = "build_failure"
	// KindStartFailure: construction succeeded, starting failed.
	KindStartFailure ErrorKind = "start_failure"
	// KindDuplicateName: a second artifact resolved to a name that is
	// already live.
	KindDuplicateName ErrorKind = "duplicate_name"
)

// ErrAppNotFound is returned for operations against an unregistered
// application name.
var ErrAppNotFound = errors.New("application not found")

// DeploymentError is the boundary error for all deploy-path failures.
// It never propagates past the poller; it feeds listener notifications
// and the zombie registry.
type DeploymentError struct {
	Kind  ErrorKind
	App   string
	Cause error
}

func (e *DeploymentError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("deployment of %s failed (%s)", e.App, e.Kind)
	}
	return fmt.Sprintf("deployment of %s failed (%s): %v", e.App, e.Kind, e.Cause)
}

func (e *DeploymentError) Unwrap() error {
	return e.Cause
}
