// Package config holds the user settings of a session: which git to run,
// how histories are loaded and whether the repository is watched.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// GitPath is the git executable, looked up in PATH by default.
	GitPath string `yaml:"git"`
	// Env is appended to the environment of every git command.
	Env []string `yaml:"env"`
	// LogArgs are extra revision arguments for the main history, e.g.
	// "--all" or a range.
	LogArgs []string `yaml:"log_args"`
	// AllBranches loads every branch instead of HEAD only.
	AllBranches bool `yaml:"all_branches"`
	// Watch reloads the history when the repository changes on disk.
	Watch       bool          `yaml:"watch"`
	ReloadDelay time.Duration `yaml:"reload_delay"`
	// NotifyEvery is how many records a load inserts between progress
	// notifications.
	NotifyEvery int `yaml:"notify_every"`
}

func Default() Config {
	return Config{
		GitPath:     "git",
		ReloadDelay: 500 * time.Millisecond,
		NotifyEvery: 500,
	}
}

// Load reads path over the defaults, then applies the QGIT_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QGIT_GIT"); ok && strings.TrimSpace(v) != "" {
		c.GitPath = strings.TrimSpace(v)
	}
	for name, dst := range map[string]*bool{
		"QGIT_WATCH":        &c.Watch,
		"QGIT_ALL_BRANCHES": &c.AllBranches,
	} {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.GitPath == "" {
		errs = append(errs, errors.New("git path is empty"))
	}
	if c.ReloadDelay < 0 {
		errs = append(errs, fmt.Errorf("reload_delay %s is negative", c.ReloadDelay))
	}
	if c.NotifyEvery <= 0 {
		errs = append(errs, fmt.Errorf("notify_every must be positive, got %d", c.NotifyEvery))
	}
	return errors.Join(errs...)
}

// RevisionArgs are the revisions the main history starts from.
func (c Config) RevisionArgs() []string {
	args := append([]string(nil), c.LogArgs...)
	if c.AllBranches {
		args = append(args, "--all")
	}
	if len(args) == 0 {
		args = []string{"HEAD"}
	}
	return args
}
