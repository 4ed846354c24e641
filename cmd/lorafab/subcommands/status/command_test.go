package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/rest/mock"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/internal/commandline"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/logger"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/status"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
)

func TestStatusCommand(t *testing.T) {
	detail := trainings.Detail{
		Summary: trainings.Summary{
			ID:          "training-1",
			Status:      trainings.Processing,
			Destination: "me/my-model",
			CreatedAt:   time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC),
		},
		Input: trainings.Input{TriggerWord: "CRG", Steps: 1500},
	}

	type When struct {
		getError error
	}
	type Then struct {
		err error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			client.Impl.GetTraining = func(ctx context.Context, trainingID string) (trainings.Detail, error) {
				if trainingID != "training-1" {
					t.Errorf("wrong trainingID: %s", trainingID)
				}
				return detail, when.getError
			}

			stdout := new(strings.Builder)
			testee := status.Task()
			err := testee(
				context.Background(),
				logger.Null(),
				*env.New(),
				client,
				commandline.MockCommandline[status.Flags]{
					Fullname_: "lorafab status",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    status.Flags{},
					Args_: map[string][]string{
						status.ARG_TRAINING_ID: {"training-1"},
					},
				},
				[]any{},
			)

			if !errors.Is(err, then.err) {
				t.Fatalf("wrong error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if then.err != nil {
				return
			}

			var shown trainings.Detail
			if err := json.Unmarshal([]byte(stdout.String()), &shown); err != nil {
				t.Fatalf("stdout is not JSON: %s", stdout.String())
			}
			if !shown.Equal(detail) {
				t.Errorf(
					"wrong detail:\n===actual===\n%+v\n===expected===\n%+v",
					shown, detail,
				)
			}
		}
	}

	t.Run("when the training exists, it is shown as JSON", theory(
		When{}, Then{},
	))
	t.Run("when the training is unknown, the error is passed through", theory(
		When{getError: rest.ErrPermanent}, Then{err: rest.ErrPermanent},
	))
}
