package common_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/internal/commandline"
	"github.com/lorafab/lorafab/pkg/configure"
	"github.com/lorafab/lorafab/pkg/monitor"
	"github.com/lorafab/lorafab/pkg/retrieve"
)

func invoke(t *testing.T, rec *common.ExitRecorder, taskErr error) error {
	t.Helper()

	task := common.NewLocalTask(rec, func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		return taskErr
	})

	return task(
		context.Background(),
		commandline.MockCommandline[struct{}]{
			Fullname_: "lorafab test",
			Stdout_:   new(strings.Builder),
			Stderr_:   new(strings.Builder),
			Args_:     map[string][]string{},
		},
		[]any{common.CommonFlags{}},
	)
}

func TestExitRecorder(t *testing.T) {
	type When struct {
		err error
	}
	type Then struct {
		code int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			rec := common.NewExitRecorder()

			err := invoke(t, rec, when.err)
			if !errors.Is(err, when.err) {
				t.Errorf("the task error should be passed through: %v", err)
			}
			if rec.Code() != then.code {
				t.Errorf("wrong code: (actual, expected) = (%d, %d)", rec.Code(), then.code)
			}
		}
	}

	t.Run("nil means success", theory(
		When{}, Then{code: common.ExitOK},
	))
	t.Run("validation failures map to the config status", theory(
		When{err: fmt.Errorf("%w: steps", configure.ErrInvalidConfiguration)},
		Then{code: common.ExitConfig},
	))
	t.Run("config source failures map to the config status", theory(
		When{err: configure.ErrUnknownPreset},
		Then{code: common.ExitConfig},
	))
	t.Run("authentication failures map to the remote status", theory(
		When{err: fmt.Errorf("%w: bad token", rest.ErrAuthentication)},
		Then{code: common.ExitRemote},
	))
	t.Run("exhausted retries map to the remote status", theory(
		When{err: fmt.Errorf("%w (5)", monitor.ErrTooManyTransientFailures)},
		Then{code: common.ExitRemote},
	))
	t.Run("a failed training maps to the remote status", theory(
		When{err: fmt.Errorf("%w: training-1: OOM", common.ErrTrainingFailed)},
		Then{code: common.ExitRemote},
	))
	t.Run("an acknowledged cancellation maps to the canceled status", theory(
		When{err: fmt.Errorf("%w: training-1", common.ErrTrainingCanceled)},
		Then{code: common.ExitCanceled},
	))
	t.Run("artifact failures map to the artifact status", theory(
		When{err: fmt.Errorf("%w: out.safetensors", retrieve.ErrArtifactExists)},
		Then{code: common.ExitArtifact},
	))
	t.Run("unclassified errors map to the config status", theory(
		When{err: errors.New("fake error")},
		Then{code: common.ExitConfig},
	))
}

func TestNewLocalTask(t *testing.T) {
	t.Run("when the common flags are missing from params, it is a programming error", func(t *testing.T) {
		rec := common.NewExitRecorder()
		task := common.NewLocalTask(rec, func(
			ctx context.Context,
			logger *log.Logger,
			e env.Env,
			cl flarc.Commandline[struct{}],
			params []any,
		) error {
			t.Error("the task should not run")
			return nil
		})

		err := task(
			context.Background(),
			commandline.MockCommandline[struct{}]{
				Fullname_: "lorafab test",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Args_:     map[string][]string{},
			},
			[]any{},
		)
		if err == nil {
			t.Error("error should be returned")
		}
	})
}
