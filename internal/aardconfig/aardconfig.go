// Package aardconfig decodes the project-level YAML configuration file
// (spec §6 "collaborator contracts"): which packages the analyzer skips,
// where the static artifact and dynamic trace land, and whether
// instrumentation should run at all.
package aardconfig

import (
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/aardwolf-sfl/aardwolf/internal/trace"
)

// Config is the decoded contents of aardwolf.yml.
type Config struct {
	ExcludePkgs       []string `yaml:"excludePkgs"`
	DestDir           string   `yaml:"destDir"`
	DisableInstrument bool     `yaml:"disableInstrument"`
}

// Default returns the zero-value configuration a project gets when it
// ships no aardwolf.yml at all.
func Default() *Config {
	return &Config{}
}

// Load decodes the YAML config file at path. A missing file is returned as
// the read error; callers that want config-or-defaults should check
// os.IsNotExist on it and fall back to Default().
func Load(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"path":     path,
		"excluded": len(cfg.ExcludePkgs),
	}).Debug("aardconfig: loaded config file")

	return cfg, nil
}

// IsExcluded reports whether pkgPath matches one of the config's excluded
// package paths, exactly as the teacher's own ExcludedPkgs check compares.
func (c *Config) IsExcluded(pkgPath string) bool {
	if c == nil {
		return false
	}
	for _, ex := range c.ExcludePkgs {
		if ex == pkgPath {
			return true
		}
	}
	return false
}

// ResolveDestDir applies the spec's env-wins precedence: AARDWOLF_DATA_DEST
// always overrides the config file's destDir, which in turn overrides the
// current working directory default.
func (c *Config) ResolveDestDir() string {
	if env := os.Getenv(trace.DestDirEnv); env != "" {
		return env
	}
	if c != nil && c.DestDir != "" {
		return c.DestDir
	}
	return "."
}

// InstrumentationDisabled reports whether the config turns off dynamic
// instrumentation entirely; cmd/aardwolf-analyze then skips the source
// rewrite altogether rather than rewriting against the no-op runtime.
func (c *Config) InstrumentationDisabled() bool {
	return c != nil && c.DisableInstrument
}
