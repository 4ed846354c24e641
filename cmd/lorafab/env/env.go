package env

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by lorafab.
const (
	// EnvAPIToken carries the provider credential. Required for every
	// command that talks to the provider.
	EnvAPIToken = "REPLICATE_API_TOKEN"

	// EnvAPIRoot overrides the provider endpoint, mainly for tests and
	// proxies.
	EnvAPIRoot = "LORAFAB_API_ROOT"

	// EnvNamespace supplies a default destination namespace, so a bare
	// "--destination my-model" works.
	EnvNamespace = "LORAFAB_NAMESPACE"

	// EnvConfigDir is searched for bare --config file names.
	EnvConfigDir = "LORAFAB_CONFIG_DIR"
)

// DefaultAPIRoot is the hosted trainings API.
const DefaultAPIRoot = "https://api.replicate.com/v1"

// Env is the process environment relevant to lorafab.
type Env struct {
	APIToken         string
	APIRoot          string
	DefaultNamespace string
	ConfigDir        string
}

// New returns an empty Env, for tests.
func New() *Env {
	return &Env{APIRoot: DefaultAPIRoot}
}

// Load reads the process environment.
func Load() Env {
	e := Env{
		APIToken:         os.Getenv(EnvAPIToken),
		APIRoot:          os.Getenv(EnvAPIRoot),
		DefaultNamespace: os.Getenv(EnvNamespace),
		ConfigDir:        os.Getenv(EnvConfigDir),
	}
	if e.APIRoot == "" {
		e.APIRoot = DefaultAPIRoot
	}
	return e
}

// QualifyDestination fills in the default namespace when dest has none.
func (e Env) QualifyDestination(dest string) string {
	if dest == "" || strings.Contains(dest, "/") || e.DefaultNamespace == "" {
		return dest
	}
	return e.DefaultNamespace + "/" + dest
}

// ResolveConfigPath locates a --config value. A bare file name that does
// not exist in the working directory is looked up in ConfigDir.
func (e Env) ResolveConfigPath(name string) string {
	if name == "" || e.ConfigDir == "" {
		return name
	}
	if filepath.Base(name) != name {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if candidate := filepath.Join(e.ConfigDir, name); fileExists(candidate) {
		return candidate
	}
	return name
}

func fileExists(path string) bool {
	s, err := os.Stat(path)
	return err == nil && s.Mode().IsRegular()
}
