package common

import (
	"errors"

	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/pkg/configure"
	"github.com/lorafab/lorafab/pkg/monitor"
	"github.com/lorafab/lorafab/pkg/retrieve"
)

// Process exit statuses. Scriptable consumers branch on these.
const (
	ExitOK       = 0
	ExitConfig   = 1 // bad flags, bad config file, validation failure
	ExitRemote   = 2 // the provider refused, failed or stayed unreachable
	ExitCanceled = 3 // cancellation requested and acknowledged
	ExitArtifact = 4 // output retrieval failed after the job succeeded
)

// ErrTrainingCanceled marks a job that reached the canceled state after
// the user asked for it. It is an outcome, not a failure.
var ErrTrainingCanceled = errors.New("training canceled")

// ErrTrainingFailed marks a job the provider moved to the failed state.
var ErrTrainingFailed = errors.New("training failed")

// ExitRecorder maps a task's error onto a process exit status.
//
// flarc folds every task error to the same status, so commands cannot
// signal outcome categories through the return value alone. The
// recorder sits in the task adapter, classifies the error and keeps the
// status for main to pick up.
type ExitRecorder struct {
	code int
}

func NewExitRecorder() *ExitRecorder {
	return &ExitRecorder{}
}

func (r *ExitRecorder) record(err error) {
	if err == nil {
		r.code = ExitOK
		return
	}
	r.code = codeFor(err)
}

// Code returns the status recorded by the last finished task.
func (r *ExitRecorder) Code() int {
	return r.code
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, ErrTrainingCanceled):
		return ExitCanceled
	case errors.Is(err, retrieve.ErrArtifactNotFound),
		errors.Is(err, retrieve.ErrArtifactExists),
		errors.Is(err, retrieve.ErrNotSucceeded):
		return ExitArtifact
	case errors.Is(err, ErrTrainingFailed),
		errors.Is(err, rest.ErrAuthentication),
		errors.Is(err, rest.ErrPermanent),
		errors.Is(err, rest.ErrTransient),
		errors.Is(err, monitor.ErrTimedOut),
		errors.Is(err, monitor.ErrTooManyTransientFailures),
		errors.Is(err, monitor.ErrCancelUnconfirmed):
		return ExitRemote
	case errors.Is(err, configure.ErrInvalidConfiguration),
		errors.Is(err, configure.ErrConfigSource):
		return ExitConfig
	default:
		return ExitConfig
	}
}
