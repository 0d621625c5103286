// Package commands implements the texbuilder subcommands.
package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// DefaultConfigFile is read when present and no --config was given.
const DefaultConfigFile = "texbuilder.yaml"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: ./texbuilder.yaml when present)"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build a LaTeX document"`
	Forward  ForwardCmd  `cmd:"" help:"Find the PDF rectangles for a source position"`
	Backward BackwardCmd `cmd:"" help:"Find the source position for a PDF location"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild on source changes and serve the control API"`
	Clean    CleanCmd    `cmd:"" help:"Remove build byproducts next to the root file"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// TEXBUILDER_LOG_LEVEL overrides the level chosen by --verbose.
//
//nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	if env, ok := os.LookupEnv("TEXBUILDER_LOG_LEVEL"); ok {
		level = parseLogLevel(env, level)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func parseLogLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// loadConfig reads the configuration named by --config, the default file
// when it exists, or falls back to built-in defaults.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.Config
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = DefaultConfigFile
	}
	return config.Load(path)
}

// BuildFlags override the build section of the configuration.
type BuildFlags struct {
	Interpreter string `short:"i" help:"TeX engine (pdflatex, xelatex, lualatex, tectonic)"`
	Latexmk     bool   `help:"Let latexmk drive the passes"`
	ShellEscape string `help:"Shell escape mode (disabled, restricted, enabled)"`
	Cleanup     bool   `help:"Remove build byproducts after a successful build"`
}

func (f BuildFlags) apply(cfg *config.Config) (query.BuildParams, error) {
	if f.Interpreter != "" {
		cfg.Build.Interpreter = f.Interpreter
	}
	if f.Latexmk {
		cfg.Build.UseLatexmk = true
	}
	if f.ShellEscape != "" {
		cfg.Build.ShellEscape = f.ShellEscape
	}
	if f.Cleanup {
		cfg.Build.CleanupBuildFiles = true
	}
	return cfg.BuildParams()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func rootFileArg(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNotFound, "root file not found").
			WithContext("root_file", path).Build()
	}
	if info.IsDir() {
		return "", errors.ValidationError("root file is a directory").WithContext("root_file", path).Build()
	}
	return path, nil
}
