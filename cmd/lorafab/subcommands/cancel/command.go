package cancel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
)

type Flags struct {
	Yes bool `flag:"yes" alias:"y" help:"cancel without confirmation."`
}

const ARG_TRAINING_ID = "TRAINING_ID"

func New(rec *common.ExitRecorder) (flarc.Command, error) {
	return flarc.NewCommand(
		"Ask the provider to cancel a training job.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_TRAINING_ID, Required: true,
				Help: "Id of the training to be canceled",
			},
		},
		common.NewTask(rec, Task()),
		flarc.WithDescription(`
Ask the provider to cancel a training job.

Cancellation is asynchronous: the provider acknowledges the request and
moves the job to "canceled" on its own schedule. The command prints the
job as the provider reports it right after the request.
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

		if !cl.Flags().Yes {
			fmt.Fprintf(cl.Stderr(), "cancel training %s? [y/N]: ", trainingID)
			line, err := bufio.NewReader(cl.Stdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("%w: could not read confirmation (use --yes)", flarc.ErrUsage)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
			default:
				logger.Printf("not canceled: %s", trainingID)
				return nil
			}
		}

		detail, err := client.CancelTraining(ctx, trainingID)
		if err != nil {
			return fmt.Errorf("%w: training Id:%s", err, trainingID)
		}
		logger.Printf("cancel requested: training %s is %s", detail.ID, detail.Status)

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(detail)
	}
}
