// Package monitor drives a submitted training job to a terminal state.
//
// It owns the polling loop: backoff between polls, bounded retry of
// transient failures, the caller timeout, and cooperative cancellation.
// The provider is the single source of truth for job status; the
// monitor never transitions a job locally.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
)

var (
	// ErrTimedOut reports that the caller-supplied timeout elapsed
	// before the job reached a terminal state.
	ErrTimedOut = errors.New("monitoring timed out")

	// ErrTooManyTransientFailures reports that consecutive transient
	// poll failures exceeded the bound. It is not retried further.
	ErrTooManyTransientFailures = errors.New("too many consecutive transient failures")

	// ErrCancelUnconfirmed reports that a cancel request was sent but
	// the provider did not confirm a terminal state within the grace
	// period. The job may still terminate on its own.
	ErrCancelUnconfirmed = errors.New("cancellation is not confirmed by the provider")
)

type monitorOption struct {
	interval     time.Duration
	maxInterval  time.Duration
	factor       float64
	timeout      time.Duration
	cancelGrace  time.Duration
	maxTransient int
	onSnapshot   func(trainings.Detail)
}

type Option func(*monitorOption) *monitorOption

// WithInterval sets the initial poll interval, the backoff factor and
// the interval cap.
func WithInterval(initial time.Duration, factor float64, cap time.Duration) Option {
	return func(o *monitorOption) *monitorOption {
		o.interval = initial
		o.factor = factor
		o.maxInterval = cap
		return o
	}
}

// WithTimeout bounds the whole monitoring session. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *monitorOption) *monitorOption {
		o.timeout = d
		return o
	}
}

// WithCancelGrace bounds how long the monitor keeps polling after it
// sent a cancel request, waiting for the provider to confirm.
func WithCancelGrace(d time.Duration) Option {
	return func(o *monitorOption) *monitorOption {
		o.cancelGrace = d
		return o
	}
}

// WithTransientLimit sets how many transient poll failures in a row are
// tolerated before escalating.
func WithTransientLimit(n int) Option {
	return func(o *monitorOption) *monitorOption {
		o.maxTransient = n
		return o
	}
}

// WithSnapshot registers a callback invoked with the latest job state
// after each successful poll. Only the most recent snapshot is ever
// held; the monitor keeps no history.
func WithSnapshot(f func(trainings.Detail)) Option {
	return func(o *monitorOption) *monitorOption {
		o.onSnapshot = f
		return o
	}
}

// Monitor polls the training job until it reaches a terminal state.
//
// The terminal Detail is returned with a nil error whatever the
// terminal status is; inspecting Status is the caller's business.
//
// Canceling ctx requests cancellation of the remote job: the monitor
// sends one cancel call at the next poll boundary (never mid-call) and
// keeps polling within the grace period. A race with natural
// completion is possible; whichever terminal state the provider
// reports first wins.
func Monitor(ctx context.Context, client rest.TrainingClient, trainingID string, options ...Option) (trainings.Detail, error) {
	opt := &monitorOption{
		interval:     5 * time.Second,
		maxInterval:  60 * time.Second,
		factor:       2.0,
		cancelGrace:  2 * time.Minute,
		maxTransient: 5,
	}
	for _, o := range options {
		opt = o(opt)
	}

	var deadline <-chan time.Time
	if 0 < opt.timeout {
		overall := time.NewTimer(opt.timeout)
		defer overall.Stop()
		deadline = overall.C
	}

	var last trainings.Detail
	transient := 0
	interval := opt.interval

	pollCtx := ctx
	cancelWatch := ctx.Done()
	cancelRequested := false
	var graceDeadline time.Time

	requestCancel := func() error {
		// Cancellation is cooperative: it takes effect at a poll
		// boundary, never mid-call. The request is sent once;
		// afterwards polling continues on a context that outlives ctx
		// so the provider's final word can still be observed.
		cancelWatch = nil
		cancelRequested = true
		graceDeadline = time.Now().Add(opt.cancelGrace)
		pollCtx = context.WithoutCancel(ctx)
		interval = opt.interval

		if _, cerr := client.CancelTraining(pollCtx, trainingID); cerr != nil {
			if !errors.Is(cerr, rest.ErrTransient) && !errors.Is(cerr, rest.ErrPermanent) {
				return cerr
			}
			// a rejected cancel usually means the run already
			// finished; the next poll settles it
		}
		return nil
	}

	for {
		if cancelWatch != nil {
			select {
			case <-cancelWatch:
				if err := requestCancel(); err != nil {
					return last, err
				}
			default:
			}
		}

		if cancelRequested && time.Now().After(graceDeadline) {
			return last, fmt.Errorf(
				"%w: training %s last seen as %q",
				ErrCancelUnconfirmed, trainingID, last.Status,
			)
		}

		detail, err := client.GetTraining(pollCtx, trainingID)
		switch {
		case err == nil:
			transient = 0
			last = detail
			if opt.onSnapshot != nil {
				opt.onSnapshot(detail)
			}
			if detail.Status.Terminal() {
				return detail, nil
			}
		case errors.Is(err, rest.ErrTransient):
			transient++
			if opt.maxTransient <= transient {
				return last, fmt.Errorf(
					"%w (%d): %s", ErrTooManyTransientFailures, transient, err,
				)
			}
		default:
			// permanent or authentication failure: no retry
			return last, err
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
			next := time.Duration(float64(interval) * opt.factor)
			interval = min(next, opt.maxInterval)

		case <-cancelWatch:
			timer.Stop()
			if err := requestCancel(); err != nil {
				return last, err
			}

		case <-deadline:
			timer.Stop()
			return last, fmt.Errorf(
				"%w after %s: training %s last seen as %q",
				ErrTimedOut, opt.timeout, trainingID, last.Status,
			)
		}
	}
}
