package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/rest/mock"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/cmp"
	"github.com/lorafab/lorafab/pkg/monitor"
	"github.com/lorafab/lorafab/pkg/utils/try"
)

func detailWith(status trainings.Status) trainings.Detail {
	return trainings.Detail{
		Summary: trainings.Summary{
			ID:          "training-1",
			Status:      status,
			Destination: "me/my-model",
			CreatedAt:   time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC),
		},
	}
}

// fastPoll makes the loop spin quickly without backing off.
func fastPoll() monitor.Option {
	return monitor.WithInterval(time.Millisecond, 1.0, time.Millisecond)
}

func TestMonitor(t *testing.T) {
	t.Run("when the job succeeds after some polls, the terminal detail is returned", func(t *testing.T) {
		sequence := []trainings.Status{
			trainings.Queued, trainings.Starting,
			trainings.Processing, trainings.Processing,
			trainings.Succeeded,
		}

		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(sequence[len(client.Calls.GetTraining)-1]), nil
		}

		snapshots := []trainings.Status{}
		actual := try.To(monitor.Monitor(
			context.Background(), client, "training-1",
			fastPoll(),
			monitor.WithSnapshot(func(d trainings.Detail) {
				snapshots = append(snapshots, d.Status)
			}),
		)).OrFatal(t)

		if actual.Status != trainings.Succeeded {
			t.Errorf("wrong status: %s", actual.Status)
		}
		if len(client.Calls.GetTraining) != len(sequence) {
			t.Errorf(
				"wrong poll count: (actual, expected) = (%d, %d)",
				len(client.Calls.GetTraining), len(sequence),
			)
		}
		if len(client.Calls.CancelTraining) != 0 {
			t.Errorf("cancel should not be requested: %v", client.Calls.CancelTraining)
		}
		if !cmp.SliceEq(snapshots, sequence) {
			t.Errorf("wrong snapshots: (actual, expected) = (%v, %v)", snapshots, sequence)
		}
	})

	t.Run("when a failed job terminates, the detail is returned without error", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			d := detailWith(trainings.Failed)
			d.Error = "OOM"
			return d, nil
		}

		actual := try.To(monitor.Monitor(
			context.Background(), client, "training-1", fastPoll(),
		)).OrFatal(t)
		if actual.Status != trainings.Failed || actual.Error != "OOM" {
			t.Errorf("wrong detail: %+v", actual)
		}
	})

	t.Run("when transient failures stay under the bound, polling continues", func(t *testing.T) {
		responses := []error{
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			nil,
		}

		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			if err := responses[len(client.Calls.GetTraining)-1]; err != nil {
				return trainings.Detail{}, err
			}
			return detailWith(trainings.Succeeded), nil
		}

		actual := try.To(monitor.Monitor(
			context.Background(), client, "training-1",
			fastPoll(), monitor.WithTransientLimit(3),
		)).OrFatal(t)
		if actual.Status != trainings.Succeeded {
			t.Errorf("wrong status: %s", actual.Status)
		}
	})

	t.Run("when transient failures exceed the bound, it escalates", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return trainings.Detail{}, fmt.Errorf("%w: hiccup", rest.ErrTransient)
		}

		_, err := monitor.Monitor(
			context.Background(), client, "training-1",
			fastPoll(), monitor.WithTransientLimit(3),
		)
		if !errors.Is(err, monitor.ErrTooManyTransientFailures) {
			t.Errorf("error should be ErrTooManyTransientFailures: %v", err)
		}
		if len(client.Calls.GetTraining) != 3 {
			t.Errorf("wrong poll count: (actual, expected) = (%d, 3)", len(client.Calls.GetTraining))
		}
	})

	t.Run("when a successful poll intervenes, the transient counter resets", func(t *testing.T) {
		responses := []error{
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			nil,
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			fmt.Errorf("%w: hiccup", rest.ErrTransient),
			nil,
		}

		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			n := len(client.Calls.GetTraining) - 1
			if n < len(responses) && responses[n] != nil {
				return trainings.Detail{}, responses[n]
			}
			if n == len(responses)-1 {
				return detailWith(trainings.Succeeded), nil
			}
			return detailWith(trainings.Processing), nil
		}

		actual := try.To(monitor.Monitor(
			context.Background(), client, "training-1",
			fastPoll(), monitor.WithTransientLimit(3),
		)).OrFatal(t)
		if actual.Status != trainings.Succeeded {
			t.Errorf("wrong status: %s", actual.Status)
		}
	})

	t.Run("when a poll fails permanently, it escalates at once", func(t *testing.T) {
		fakeError := fmt.Errorf("%w: no such training", rest.ErrPermanent)

		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return trainings.Detail{}, fakeError
		}

		_, err := monitor.Monitor(context.Background(), client, "training-1", fastPoll())
		if !errors.Is(err, rest.ErrPermanent) {
			t.Errorf("error should be ErrPermanent: %v", err)
		}
		if len(client.Calls.GetTraining) != 1 {
			t.Errorf("wrong poll count: (actual, expected) = (%d, 1)", len(client.Calls.GetTraining))
		}
	})

	t.Run("when the timeout elapses, it fails with ErrTimedOut", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(trainings.Processing), nil
		}

		_, err := monitor.Monitor(
			context.Background(), client, "training-1",
			monitor.WithInterval(time.Hour, 1.0, time.Hour),
			monitor.WithTimeout(5*time.Millisecond),
		)
		if !errors.Is(err, monitor.ErrTimedOut) {
			t.Errorf("error should be ErrTimedOut: %v", err)
		}
	})
}

func TestMonitor_cancellation(t *testing.T) {
	t.Run("when ctx is canceled, one cancel request is sent and the canceled state is awaited", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			if len(client.Calls.CancelTraining) == 0 || len(client.Calls.GetTraining) < 3 {
				return detailWith(trainings.Processing), nil
			}
			return detailWith(trainings.Canceled), nil
		}
		client.Impl.CancelTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			if trainingID != "training-1" {
				t.Errorf("wrong trainingID: %s", trainingID)
			}
			return detailWith(trainings.Processing), nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual := try.To(monitor.Monitor(
			ctx, client, "training-1",
			fastPoll(), monitor.WithCancelGrace(time.Minute),
		)).OrFatal(t)

		if actual.Status != trainings.Canceled {
			t.Errorf("wrong status: %s", actual.Status)
		}
		if len(client.Calls.CancelTraining) != 1 {
			t.Errorf("cancel should be requested exactly once: %v", client.Calls.CancelTraining)
		}
	})

	t.Run("when the job finishes before the cancel lands, the success wins", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(trainings.Succeeded), nil
		}
		client.Impl.CancelTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return trainings.Detail{}, fmt.Errorf("%w: training already completed", rest.ErrPermanent)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual := try.To(monitor.Monitor(
			ctx, client, "training-1",
			fastPoll(), monitor.WithCancelGrace(time.Minute),
		)).OrFatal(t)
		if actual.Status != trainings.Succeeded {
			t.Errorf("wrong status: %s", actual.Status)
		}
	})

	t.Run("when the provider never confirms within the grace period, it fails with ErrCancelUnconfirmed", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(trainings.Processing), nil
		}
		client.Impl.CancelTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(trainings.Processing), nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := monitor.Monitor(
			ctx, client, "training-1",
			monitor.WithInterval(5*time.Millisecond, 1.0, 5*time.Millisecond),
			monitor.WithCancelGrace(time.Millisecond),
		)
		if !errors.Is(err, monitor.ErrCancelUnconfirmed) {
			t.Errorf("error should be ErrCancelUnconfirmed: %v", err)
		}
	})

	t.Run("when the cancel request itself fails on authentication, it escalates", func(t *testing.T) {
		fakeError := fmt.Errorf("%w: token revoked", rest.ErrAuthentication)

		client := mock.New(t)
		client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return detailWith(trainings.Processing), nil
		}
		client.Impl.CancelTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
			return trainings.Detail{}, fakeError
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := monitor.Monitor(ctx, client, "training-1", fastPoll())
		if !errors.Is(err, rest.ErrAuthentication) {
			t.Errorf("error should be ErrAuthentication: %v", err)
		}
	})
}
