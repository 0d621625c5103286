package toolchain

import (
	"context"
	"os/exec"
	"slices"
	"sync"
)

// Handler plays the part of a tool in a FakeRunner. It runs when the process
// is waited on; ctx is cancelled when the process is killed.
type Handler func(ctx context.Context, cmd Command) (*Result, error)

// FakeRunner records commands and dispatches them to per-tool handlers.
// Tools without a handler exit 0 with no output unless marked missing.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []Command
	handlers map[string]Handler
	missing  map[string]bool
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		handlers: make(map[string]Handler),
		missing:  make(map[string]bool),
	}
}

// Handle installs h for tool.
func (f *FakeRunner) Handle(tool string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[tool] = h
}

// SetMissing makes Start fail for tool as if it were not installed.
func (f *FakeRunner) SetMissing(tool string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[tool] = true
}

// Calls returns every command started so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Tools returns the tool names started so far, in order.
func (f *FakeRunner) Tools() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tools := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		tools = append(tools, c.Tool)
	}
	return tools
}

func (f *FakeRunner) Start(ctx context.Context, cmd Command) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[cmd.Tool] {
		return nil, toolNotFound(cmd.Tool, exec.ErrNotFound)
	}
	f.calls = append(f.calls, cmd)
	pctx, cancel := context.WithCancel(ctx)
	return &fakeProcess{ctx: pctx, cancel: cancel, cmd: cmd, handler: f.handlers[cmd.Tool]}, nil
}

type fakeProcess struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cmd     Command
	handler Handler
}

func (p *fakeProcess) Wait() (*Result, error) {
	defer p.cancel()
	if p.handler == nil {
		return &Result{}, nil
	}
	res, err := p.handler(p.ctx, p.cmd)
	if p.ctx.Err() != nil {
		return &Result{ExitCode: -1}, nil
	}
	if res == nil {
		res = &Result{}
	}
	return res, err
}

func (p *fakeProcess) Kill() { p.cancel() }
