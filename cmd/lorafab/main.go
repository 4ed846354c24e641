package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/youta-t/flarc"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	subcancel "github.com/lorafab/lorafab/cmd/lorafab/subcommands/cancel"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/common"
	subdownload "github.com/lorafab/lorafab/cmd/lorafab/subcommands/download"
	subinitconfig "github.com/lorafab/lorafab/cmd/lorafab/subcommands/initconfig"
	sublist "github.com/lorafab/lorafab/cmd/lorafab/subcommands/list"
	"github.com/lorafab/lorafab/cmd/lorafab/subcommands/logger"
	substatus "github.com/lorafab/lorafab/cmd/lorafab/subcommands/status"
	subtrain "github.com/lorafab/lorafab/cmd/lorafab/subcommands/train"
	subversion "github.com/lorafab/lorafab/cmd/lorafab/subcommands/version"
	"github.com/lorafab/lorafab/pkg/utils/try"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer cancel()

	cf := common.Flags(env.Load())
	rec := common.NewExitRecorder()

	train := try.To(subtrain.New(rec)).OrFatal(logger)
	list := try.To(sublist.New(rec)).OrFatal(logger)
	status := try.To(substatus.New(rec)).OrFatal(logger)
	cancelCmd := try.To(subcancel.New(rec)).OrFatal(logger)
	download := try.To(subdownload.New(rec)).OrFatal(logger)
	initconfig := try.To(subinitconfig.New(rec)).OrFatal(logger)
	version := try.To(subversion.New()).OrFatal(logger)

	lorafab := try.To(
		flarc.NewCommandGroup(
			"Fine-tune image models on a hosted trainings API.",
			cf,
			flarc.WithSubcommand("train", train),
			flarc.WithSubcommand("list", list),
			flarc.WithSubcommand("status", status),
			flarc.WithSubcommand("cancel", cancelCmd),
			flarc.WithSubcommand("download", download),
			flarc.WithSubcommand("init-config", initconfig),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	exit := flarc.Run(ctx, lorafab, flarc.WithHelp(true))
	if exit != 0 {
		if code := rec.Code(); code != 0 {
			exit = code
		}
	}
	os.Exit(exit)
}
