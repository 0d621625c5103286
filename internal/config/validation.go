package config

import (
	stderrors "errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// maxPollInterval bounds how long a finished query can wait to be noticed.
const maxPollInterval = 100 * time.Millisecond

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, msg string) {
		errs = append(errs, errors.ValidationError(fmt.Sprintf("%s: %s", field, msg)).
			WithContext("field", field).
			Build())
	}

	if _, err := query.ParseInterpreter(c.Build.Interpreter); err != nil {
		fail("build.interpreter", err.Error())
	}
	if _, err := query.ParseShellEscape(c.Build.ShellEscape); err != nil {
		fail("build.shell_escape", err.Error())
	}
	if d, err := time.ParseDuration(c.Build.PollInterval); err != nil || d <= 0 || d > maxPollInterval {
		fail("build.poll_interval", fmt.Sprintf("must be a duration in (0, %s], got %q", maxPollInterval, c.Build.PollInterval))
	}
	if c.Build.UseLatexmk && c.Build.Interpreter == string(query.InterpreterTectonic) {
		fail("build.use_latexmk", "latexmk cannot drive tectonic")
	}
	if c.Synctex.ConfigRoot == "" {
		fail("synctex.config_root", "must not be empty")
	}

	for field, value := range map[string]string{
		"daemon.debounce":          c.Daemon.Debounce,
		"daemon.history_retention": c.Daemon.HistoryRetention,
		"daemon.prune_interval":    c.Daemon.PruneInterval,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			fail(field, fmt.Sprintf("must be a positive duration, got %q", value))
		}
	}

	return stderrors.Join(errs...)
}
