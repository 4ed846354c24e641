package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
)

type Flags struct{}

const ARG_TRAINING_ID = "TRAINING_ID"

func New(rec *common.ExitRecorder) (flarc.Command, error) {
	return flarc.NewCommand(
		"Show one training job.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_TRAINING_ID, Required: true,
				Help: "Id of the training to be shown",
			},
		},
		common.NewTask(rec, Task()),
		flarc.WithDescription(`
Show a training job as JSON: its status, input parameters and, once it
has succeeded, the output reference.
`),
	)
}

func Task() common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		client rest.TrainingClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		trainingID := cl.Args()[ARG_TRAINING_ID][0]

		detail, err := client.GetTraining(ctx, trainingID)
		if err != nil {
			return fmt.Errorf("%w: training Id:%s", err, trainingID)
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(detail)
	}
}
