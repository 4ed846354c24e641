package initconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	"github.com/lorafab/lorafab/pkg/configure"
	kpath "github.com/lorafab/lorafab/pkg/utils/path"
)

type Flags struct {
	Preset string `flag:"preset" alias:"p" help:"preset whose values seed the file."`
	Output string `flag:"output" alias:"o" metavar:"path/to/config.yaml" help:"write here instead of stdout."`
	Force  bool   `flag:"force" help:"replace an existing file at --output."`
}

func New(rec *common.ExitRecorder) (flarc.Command, error) {
	return flarc.NewCommand(
		"Write a configuration file template.",
		Flags{},
		flarc.Args{},
		common.NewLocalTask(rec, Task()),
		flarc.WithDescription(`
Write a configuration file template, ready for "train --config".

Without --preset the template carries the built-in defaults; with it,
the preset's values. Dataset URL, destination and trigger word are
placeholders either way, since they belong to one concrete run.

Available presets: `+strings.Join(configure.DefaultRegistry().PresetNames(), ", ")+`
`),
	)
}

func Task() common.LocalTask[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()

		var out io.Writer = cl.Stdout()
		if flags.Output != "" {
			dest, err := kpath.Resolve(flags.Output)
			if err != nil {
				return fmt.Errorf("path resolving error for '%s': %w", flags.Output, err)
			}
			mode := os.O_CREATE | os.O_WRONLY | os.O_EXCL
			if flags.Force {
				mode = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			}
			f, err := os.OpenFile(dest, mode, os.FileMode(0644))
			if err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf(
						"%w: %s already exists (--force to replace)", configure.ErrConfigSource, dest,
					)
				}
				return err
			}
			defer f.Close()
			out = f
			logger.Printf("writing configuration template to %s", dest)
		}

		if err := configure.WriteTemplate(out, configure.DefaultRegistry(), flags.Preset); err != nil {
			return err
		}
		return nil
	}
}
