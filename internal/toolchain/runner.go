// Package toolchain starts the external TeX tools as cancellable processes.
//
// Builders depend on the Runner interface so tests can substitute a fake
// that never touches a real TeX installation.
package toolchain

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Command describes one tool invocation.
type Command struct {
	// Tool is the logical tool name ("pdflatex", "bibtex", "synctex", ...).
	Tool string
	Args []string
	Dir  string
	// Env entries are appended to the current environment.
	Env []string
}

// Result is what a finished process left behind.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Process is a started tool.
type Process interface {
	// Wait blocks until the process exits. A non-zero exit is reported in
	// Result, not as an error.
	Wait() (*Result, error)
	// Kill terminates the process. Safe to call after exit.
	Kill()
}

// Runner starts processes.
type Runner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecRunner runs tools with os/exec. Binaries maps a tool name to an
// explicit executable; unmapped tools are looked up on PATH.
type ExecRunner struct {
	Binaries map[string]string
}

// NewExecRunner returns a runner using the given binary overrides.
func NewExecRunner(binaries map[string]string) *ExecRunner {
	return &ExecRunner{Binaries: binaries}
}

// Resolve returns the executable path for tool.
func (r *ExecRunner) Resolve(tool string) (string, error) {
	name := tool
	if bin, ok := r.Binaries[tool]; ok && bin != "" {
		name = bin
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", toolNotFound(tool, err)
	}
	return path, nil
}

func (r *ExecRunner) Start(ctx context.Context, c Command) (Process, error) {
	path, err := r.Resolve(c.Tool)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	p := &execProcess{cmd: cmd}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	slog.Debug("Starting tool", logfields.Tool(c.Tool), logfields.Path(path), slog.Any("args", c.Args))
	if err := cmd.Start(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist) {
			return nil, toolNotFound(c.Tool, err)
		}
		return nil, errors.WrapError(err, errors.CategoryToolchain, fmt.Sprintf("failed to start %s", c.Tool)).
			WithContext(ContextKeyTool, c.Tool).
			Build()
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer

	killOnce sync.Once
}

func (p *execProcess) Wait() (*Result, error) {
	err := p.cmd.Wait()
	res := &Result{
		ExitCode: p.cmd.ProcessState.ExitCode(),
		Stdout:   p.stdout.Bytes(),
		Stderr:   p.stderr.Bytes(),
	}
	var exitErr *exec.ExitError
	if err != nil && !stderrors.As(err, &exitErr) {
		return res, err
	}
	return res, nil
}

func (p *execProcess) Kill() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	})
}
