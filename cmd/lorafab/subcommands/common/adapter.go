package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/youta-t/flarc"
)

// LocalTask is a task that never talks to the provider.
type LocalTask[T any] func(
	ctx context.Context,
	logger *log.Logger,
	e env.Env,
	cl flarc.Commandline[T],
	params []any,
) error

// Task is a task backed by a provider client.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	e env.Env,
	client rest.TrainingClient,
	cl flarc.Commandline[T],
	params []any,
) error

// NewLocalTask adapts a LocalTask to flarc. It extracts CommonFlags
// from the group params, folds them into the environment and wires a
// logger prefixed with the command name. The finished task's error is
// classified into rec.
func NewLocalTask[T any](rec *ExitRecorder, task LocalTask[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		e := commonFlag.apply(env.Load())

		err := task(ctx, logger, e, cl, newpos)
		rec.record(err)
		return err
	}
}

// NewTask adapts a Task to flarc, building a provider client on top of
// what NewLocalTask sets up.
func NewTask[T any](rec *ExitRecorder, task Task[T]) flarc.Task[T] {
	return NewLocalTask(rec, func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		cl flarc.Commandline[T],
		params []any,
	) error {
		client, err := rest.NewClient(e)
		if err != nil {
			return fmt.Errorf("%w: failed to create the provider client", err)
		}
		return task(ctx, logger, e, client, cl, params)
	})
}
