package list

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/utils/slices"
)

type Flags struct {
	Limit  int    `flag:"limit" alias:"n" help:"maximum number of trainings to show."`
	Status string `flag:"status" alias:"s" metavar:"queued|starting|processing|succeeded|failed|canceled" help:"show only trainings in this status."`
}

func New(rec *common.ExitRecorder) (flarc.Command, error) {
	return flarc.NewCommand(
		"List training jobs, newest first.",
		Flags{
			Limit: 30,
		},
		flarc.Args{},
		common.NewTask(rec, Task()),
		flarc.WithDescription(`
List training jobs as a JSON array, newest first.

The provider pages the listing; --limit bounds how far the pages are
followed. --status filters after fetching, so fewer than --limit entries
can come back even when more trainings exist.
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
		flags := cl.Flags()

		var status trainings.Status
		if flags.Status != "" {
			status = trainings.Status(strings.ToLower(flags.Status))
			if !slices.Contains(trainings.KnownStatuses(), status) {
				return fmt.Errorf("%w: unknown status %q", flarc.ErrUsage, flags.Status)
			}
		}

		found, err := client.ListTrainings(ctx, flags.Limit)
		if err != nil {
			return err
		}

		if status != "" {
			found = slices.Filter(found, func(s trainings.Summary) bool {
				return s.Status == status
			})
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(found)
	}
}
