package download

import (
	"context"
	"fmt"
	"log"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/retrieve"
)

type Flags struct {
	OutputDir string `flag:"output-dir" alias:"o" metavar:"DIR" help:"directory receiving the trained weights."`
	Overwrite bool   `flag:"overwrite" help:"replace an existing weights file."`
}

type Retrieve func(
	ctx context.Context,
	client rest.TrainingClient,
	detail trainings.Detail,
	destDir string,
	options ...retrieve.Option,
) (string, error)

type Option struct {
	retrieve Retrieve
}

func WithRetriever(retrieve Retrieve) func(*Option) *Option {
	return func(o *Option) *Option {
		o.retrieve = retrieve
		return o
	}
}

const ARG_TRAINING_ID = "TRAINING_ID"

func New(
	rec *common.ExitRecorder,
	options ...func(*Option) *Option,
) (flarc.Command, error) {
	option := &Option{
		retrieve: retrieve.Retrieve,
	}
	for _, opt := range options {
		option = opt(option)
	}

	return flarc.NewCommand(
		"Download the trained weights of a succeeded training job.",
		Flags{
			OutputDir: ".",
		},
		flarc.Args{
			{
				Name: ARG_TRAINING_ID, Required: true,
				Help: "Id of the succeeded training whose weights are downloaded",
			},
		},
		common.NewTask(rec, Task(option.retrieve)),
		flarc.WithDescription(`
Download and extract the trained weights of a succeeded training job.

The weights land in --output-dir under the name

    <namespace>-<name>_<trigger word>.safetensors

so downloads for different models or trigger words never collide.
An existing file is kept unless --overwrite is given.
`),
	)
}

func Task(fetch Retrieve) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		client rest.TrainingClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		trainingID := cl.Args()[ARG_TRAINING_ID][0]
		flags := cl.Flags()

		detail, err := client.GetTraining(ctx, trainingID)
		if err != nil {
			return fmt.Errorf("%w: training Id:%s", err, trainingID)
		}

		ropts := []retrieve.Option{retrieve.WithProgressOutput(cl.Stderr())}
		if flags.Overwrite {
			ropts = append(ropts, retrieve.WithOverwrite())
		}
		artifact, err := fetch(ctx, client, detail, flags.OutputDir, ropts...)
		if err != nil {
			return err
		}

		fmt.Fprintln(cl.Stdout(), artifact)
		return nil
	}
}
