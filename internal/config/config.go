// Package config loads the texbuilder YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const currentVersion = "1"

// Config is the root of the configuration file.
type Config struct {
	Version string            `yaml:"version"`
	Build   BuildConfig       `yaml:"build"`
	Synctex SynctexConfig     `yaml:"synctex"`
	Tools   map[string]string `yaml:"tools,omitempty"` // tool name -> executable
	Daemon  DaemonConfig      `yaml:"daemon"`
}

// BuildConfig are the settings that shape each build query.
type BuildConfig struct {
	Interpreter       string `yaml:"interpreter"`  // pdflatex|xelatex|lualatex|tectonic
	UseLatexmk        bool   `yaml:"use_latexmk"`  // let latexmk drive the passes
	ShellEscape       string `yaml:"shell_escape"` // disabled|restricted|enabled
	CleanupBuildFiles bool   `yaml:"cleanup_build_files"`
	PollInterval      string `yaml:"poll_interval"` // duration, at most 100ms
}

// SynctexConfig locates the synctex databases.
type SynctexConfig struct {
	ConfigRoot string `yaml:"config_root"`
}

// DaemonConfig configures watch mode.
type DaemonConfig struct {
	Watch             bool   `yaml:"watch"`
	Debounce          string `yaml:"debounce"`
	HTTPAddr          string `yaml:"http_addr"`
	HistoryDB         string `yaml:"history_db"`
	HistoryRetention  string `yaml:"history_retention"`
	PruneInterval     string `yaml:"prune_interval"`
	NATSURL           string `yaml:"nats_url,omitempty"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads configPath, expanding ${VAR} references from the environment
// (after loading .env files), applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("configuration file not found: %s", configPath)).
				WithCause(err).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").Build()
	}

	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").
			WithContext("path", configPath).
			Build()
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Version == "" {
		c.Version = currentVersion
	}
	b := &c.Build
	if b.Interpreter == "" {
		b.Interpreter = string(query.InterpreterPdflatex)
	}
	if b.ShellEscape == "" {
		b.ShellEscape = string(query.ShellEscapeRestricted)
	}
	if b.PollInterval == "" {
		b.PollInterval = "50ms"
	}
	if c.Synctex.ConfigRoot == "" {
		c.Synctex.ConfigRoot = defaultConfigRoot()
	}
	d := &c.Daemon
	if d.Debounce == "" {
		d.Debounce = "500ms"
	}
	if d.HTTPAddr == "" {
		d.HTTPAddr = "127.0.0.1:7878"
	}
	if d.HistoryDB == "" {
		d.HistoryDB = filepath.Join(filepath.Dir(c.Synctex.ConfigRoot), "history.db")
	}
	if d.HistoryRetention == "" {
		d.HistoryRetention = "168h"
	}
	if d.PruneInterval == "" {
		d.PruneInterval = "1h"
	}
	if d.NATSSubjectPrefix == "" {
		d.NATSSubjectPrefix = "texbuilder"
	}
}

// defaultConfigRoot is $XDG_CONFIG_HOME/texbuilder/synctex, falling back to
// the platform config dir.
func defaultConfigRoot() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "texbuilder", "synctex")
}

// BuildParams converts the build section into per-query parameters.
func (c *Config) BuildParams() (query.BuildParams, error) {
	interp, err := query.ParseInterpreter(c.Build.Interpreter)
	if err != nil {
		return query.BuildParams{}, errors.ValidationError(err.Error()).WithContext("field", "build.interpreter").Build()
	}
	shell, err := query.ParseShellEscape(c.Build.ShellEscape)
	if err != nil {
		return query.BuildParams{}, errors.ValidationError(err.Error()).WithContext("field", "build.shell_escape").Build()
	}
	return query.BuildParams{
		Interpreter:       interp,
		UseLatexmk:        c.Build.UseLatexmk,
		ShellEscape:       shell,
		CleanupBuildFiles: c.Build.CleanupBuildFiles,
	}, nil
}

// PollInterval returns the parsed poll interval. Validate guarantees it parses.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Build.PollInterval)
	return d
}

// Debounce returns the parsed watch debounce.
func (c *Config) Debounce() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.Debounce)
	return d
}

// HistoryRetention returns how long query history is kept.
func (c *Config) HistoryRetention() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.HistoryRetention)
	return d
}

// PruneInterval returns how often old history is pruned.
func (c *Config) PruneInterval() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.PruneInterval)
	return d
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Tools = map[string]string{"pdflatex": "pdflatex", "synctex": "synctex"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").Build()
	}
	return nil
}
