package common

import (
	"github.com/lorafab/lorafab/cmd/lorafab/env"
)

// CommonFlags are shared by every subcommand. Defaults come from the
// process environment; the flags override it per invocation.
type CommonFlags struct {
	APIRoot   string `flag:"api-root" help:"training provider API root URL"`
	Namespace string `flag:"namespace" help:"default namespace for unqualified --destination values"`
	ConfigDir string `flag:"config-dir" help:"directory searched for bare --config file names"`
}

// Flags derives the common flag defaults from e.
func Flags(e env.Env) CommonFlags {
	return CommonFlags{
		APIRoot:   e.APIRoot,
		Namespace: e.DefaultNamespace,
		ConfigDir: e.ConfigDir,
	}
}

// apply folds the flags back into the environment, flags winning.
func (cf CommonFlags) apply(e env.Env) env.Env {
	if cf.APIRoot != "" {
		e.APIRoot = cf.APIRoot
	}
	if cf.Namespace != "" {
		e.DefaultNamespace = cf.Namespace
	}
	if cf.ConfigDir != "" {
		e.ConfigDir = cf.ConfigDir
	}
	return e
}
