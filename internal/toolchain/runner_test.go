package toolchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func TestExecRunner_MissingTool(t *testing.T) {
	r := NewExecRunner(nil)

	_, err := r.Start(context.Background(), Command{Tool: "texbuilder-no-such-tool"})

	require.Error(t, err)
	assert.True(t, IsToolNotFound(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryToolchain))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	tool, _ := ce.Context().GetString(ContextKeyTool)
	assert.Equal(t, "texbuilder-no-such-tool", tool)
}

func TestExecRunner_ExitCodeAndOutput(t *testing.T) {
	r := NewExecRunner(map[string]string{"pdflatex": "sh"})

	p, err := r.Start(context.Background(), Command{
		Tool: "pdflatex",
		Args: []string{"-c", "echo out; echo $TEXBUILDER_PROBE >&2; exit 3"},
		Dir:  t.TempDir(),
		Env:  []string{"TEXBUILDER_PROBE=probe"},
	})
	require.NoError(t, err)

	res, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "probe\n", string(res.Stderr))
}

func TestExecRunner_Kill(t *testing.T) {
	r := NewExecRunner(nil)
	p, err := r.Start(context.Background(), Command{Tool: "sleep", Args: []string{"30"}})
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() {
		res, _ := p.Wait()
		done <- res
	}()
	p.Kill()
	p.Kill()

	select {
	case res := <-done:
		assert.NotEqual(t, 0, res.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("process was not killed")
	}
}

func TestExecRunner_ContextCancelKills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewExecRunner(nil).Start(ctx, Command{Tool: "sleep", Args: []string{"30"}})
	require.NoError(t, err)

	cancel()

	start := time.Now()
	_, _ = p.Wait()
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFakeRunner(t *testing.T) {
	f := NewFakeRunner()
	f.SetMissing("biber")
	f.Handle("bibtex", func(ctx context.Context, cmd Command) (*Result, error) {
		return &Result{Stdout: []byte(cmd.Args[0])}, nil
	})
	f.Handle("pdflatex", func(ctx context.Context, cmd Command) (*Result, error) {
		<-ctx.Done()
		return nil, nil
	})

	_, err := f.Start(context.Background(), Command{Tool: "biber"})
	assert.True(t, IsToolNotFound(err))

	p, err := f.Start(context.Background(), Command{Tool: "bibtex", Args: []string{"main.aux"}})
	require.NoError(t, err)
	res, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, "main.aux", string(res.Stdout))

	p, err = f.Start(context.Background(), Command{Tool: "pdflatex"})
	require.NoError(t, err)
	p.Kill()
	res, err = p.Wait()
	require.NoError(t, err)
	assert.Equal(t, -1, res.ExitCode)

	assert.Equal(t, []string{"bibtex", "pdflatex"}, f.Tools())
}
