package train

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/configure"
	"github.com/lorafab/lorafab/pkg/monitor"
	"github.com/lorafab/lorafab/pkg/retrieve"
	"github.com/lorafab/lorafab/pkg/utils/pointer"
)

type Flags struct {
	DatasetURL  string `flag:"dataset-url" alias:"u" metavar:"URL" help:"zip archive of training images."`
	Destination string `flag:"destination" alias:"d" metavar:"namespace/name" help:"model that receives the trained weights."`
	TriggerWord string `flag:"trigger-word" alias:"t" metavar:"WORD" help:"token that activates the trained concept."`

	Preset string `flag:"preset" alias:"p" help:"named parameter bundle to start from."`
	Config string `flag:"config" alias:"c" metavar:"path/to/config.yaml" help:"configuration file. Bare names are searched in the config dir."`

	Steps        int    `flag:"steps" help:"training steps."`
	BatchSize    int    `flag:"batch-size" help:"images per training batch."`
	Optimizer    string `flag:"optimizer" metavar:"prodigy|adamw8bit" help:"training optimizer."`
	LearningRate string `flag:"learning-rate" help:"optimizer learning rate."`
	Resolution   string `flag:"resolution" metavar:"W,H" help:"training resolutions."`
	LoraRank     int    `flag:"lora-rank" help:"LoRA adapter rank."`
	WandbProject string `flag:"wandb-project" help:"Weights & Biases project receiving training telemetry."`

	DryRun           bool `flag:"dry-run" help:"resolve and validate, print the request and stop. No remote calls."`
	SkipDatasetCheck bool `flag:"skip-dataset-check" help:"submit without probing the dataset URL first."`

	Wait      bool          `flag:"wait" alias:"w" help:"stay attached until the training reaches a terminal state."`
	Timeout   time.Duration `flag:"timeout" help:"give up waiting after this long. 0 means no limit."`
	OutputDir string        `flag:"output-dir" alias:"o" metavar:"DIR" help:"directory receiving the trained weights (with --wait)."`
	Overwrite bool          `flag:"overwrite" help:"replace an existing weights file."`
}

type Monitor func(
	ctx context.Context,
	client rest.TrainingClient,
	trainingID string,
	options ...monitor.Option,
) (trainings.Detail, error)

type Retrieve func(
	ctx context.Context,
	client rest.TrainingClient,
	detail trainings.Detail,
	destDir string,
	options ...retrieve.Option,
) (string, error)

type Option struct {
	monitor  Monitor
	retrieve Retrieve
}

func WithRunner(monitor Monitor, retrieve Retrieve) func(*Option) *Option {
	return func(o *Option) *Option {
		o.monitor = monitor
		o.retrieve = retrieve
		return o
	}
}

func New(
	rec *common.ExitRecorder,
	options ...func(*Option) *Option,
) (flarc.Command, error) {
	option := &Option{
		monitor:  monitor.Monitor,
		retrieve: retrieve.Retrieve,
	}
	for _, opt := range options {
		option = opt(option)
	}

	return flarc.NewCommand(
		"Submit a fine-tuning job built from flags, config file and preset.",
		Flags{
			OutputDir: ".",
		},
		flarc.Args{},
		common.NewTask(rec, Task(option.monitor, option.retrieve)),
		flarc.WithDescription(`
Submit a fine-tuning job.

Parameters are resolved from four layers, strongest first:

    flags > --config file > --preset > built-in defaults

The resolved parameter set is validated before anything is sent.
With --dry-run the command prints the request it would submit and stops
without any remote call.

With --wait the command follows the job until it finishes, then downloads
the trained weights into --output-dir under the name

    <namespace>-<name>_<trigger word>.safetensors

Example:

    {{ .Command }} --preset beginner \
        --dataset-url https://example.com/corgi.zip \
        --destination me/corgi-lora --trigger-word CRG --wait
`),
	)
}

func Task(watch Monitor, fetch Retrieve) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		client rest.TrainingClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()

		cli, err := cliPartial(flags, e)
		if err != nil {
			return err
		}

		var file *configure.Partial
		if flags.Config != "" {
			f, err := configure.LoadConfigFile(e.ResolveConfigPath(flags.Config))
			if err != nil {
				return err
			}
			file = f
		}

		cfg, err := configure.Resolve(configure.DefaultRegistry(), cli, file, flags.Preset)
		if err != nil {
			return err
		}

		result := configure.Validate(cfg)
		for _, a := range result.Advisories() {
			logger.Printf("warning: %s", a)
		}
		cfg, err = result.Config()
		if err != nil {
			return err
		}

		if flags.DryRun {
			enc := json.NewEncoder(cl.Stdout())
			enc.SetIndent("", "    ")
			return enc.Encode(trainings.CreateRequest{
				Destination: cfg.Destination,
				Input:       rest.InputFrom(cfg),
			})
		}

		if !flags.SkipDatasetCheck {
			if err := client.VerifyDatasetURL(ctx, cfg.DatasetURL); err != nil {
				return fmt.Errorf("%w: dataset check failed for %s (--skip-dataset-check to submit anyway)", err, cfg.DatasetURL)
			}
		}

		detail, err := client.CreateTraining(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Printf("training %s submitted for %s", detail.ID, detail.Destination)

		if !flags.Wait {
			enc := json.NewEncoder(cl.Stdout())
			enc.SetIndent("", "    ")
			return enc.Encode(detail)
		}

		lastStatus := detail.Status
		logger.Printf("training %s: %s", detail.ID, lastStatus)
		detail, err = watch(
			ctx, client, detail.ID,
			monitor.WithTimeout(flags.Timeout),
			monitor.WithSnapshot(func(d trainings.Detail) {
				if d.Status == lastStatus {
					return
				}
				lastStatus = d.Status
				logger.Printf("training %s: %s", d.ID, d.Status)
			}),
		)
		if err != nil {
			return err
		}

		switch detail.Status {
		case trainings.Canceled:
			return fmt.Errorf("%w: training %s", common.ErrTrainingCanceled, detail.ID)
		case trainings.Failed:
			return fmt.Errorf("%w: training %s: %s", common.ErrTrainingFailed, detail.ID, detail.Error)
		}

		ropts := []retrieve.Option{retrieve.WithProgressOutput(cl.Stderr())}
		if flags.Overwrite {
			ropts = append(ropts, retrieve.WithOverwrite())
		}
		artifact, err := fetch(ctx, client, detail, flags.OutputDir, ropts...)
		if err != nil {
			return err
		}

		logger.Printf("training %s succeeded", detail.ID)
		fmt.Fprintln(cl.Stdout(), artifact)
		return nil
	}
}

// cliPartial builds the strongest configuration layer from the flags.
// Zero values mean "not given" here; every parameter either has no
// meaningful zero or is a string.
func cliPartial(flags Flags, e env.Env) (configure.Partial, error) {
	p := configure.Partial{}

	if flags.DatasetURL != "" {
		p.DatasetURL = pointer.Ref(flags.DatasetURL)
	}
	if flags.Destination != "" {
		p.Destination = pointer.Ref(e.QualifyDestination(flags.Destination))
	}
	if flags.TriggerWord != "" {
		p.TriggerWord = pointer.Ref(flags.TriggerWord)
	}
	if flags.Steps != 0 {
		p.Steps = pointer.Ref(flags.Steps)
	}
	if flags.BatchSize != 0 {
		p.BatchSize = pointer.Ref(flags.BatchSize)
	}
	if flags.Optimizer != "" {
		p.Optimizer = pointer.Ref(configure.Optimizer(flags.Optimizer))
	}
	if flags.LearningRate != "" {
		lr, err := strconv.ParseFloat(flags.LearningRate, 64)
		if err != nil {
			return configure.Partial{}, fmt.Errorf(
				"%w: --learning-rate %q is not a number", flarc.ErrUsage, flags.LearningRate,
			)
		}
		p.LearningRate = pointer.Ref(lr)
	}
	if flags.Resolution != "" {
		p.Resolution = pointer.Ref(flags.Resolution)
	}
	if flags.LoraRank != 0 {
		p.LoraRank = pointer.Ref(flags.LoraRank)
	}
	if flags.WandbProject != "" {
		p.WandbProject = pointer.Ref(flags.WandbProject)
	}

	return p, nil
}
