package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSource(t *testing.T) {
	tests := map[string]bool{
		"/doc/main.tex":           true,
		"/doc/refs.bib":           true,
		"/doc/figures/plot.PNG":   true,
		"/doc/style/thesis.cls":   true,
		"/doc/main.aux":           false,
		"/doc/main.log":           false,
		"/doc/main.pdf":           false,
		"/doc/main.synctex.gz":    false,
		"/doc/.main.tex.swp":      false,
		"/doc/main.tex~":          false,
		"/doc/.#main.tex":         false,
		"/doc/chapters/intro.tex": true,
	}
	for path, want := range tests {
		assert.Equal(t, want, isSource(path), path)
	}
}

func TestWatcher_ReportsSourceChanges(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "chapters")
	require.NoError(t, os.Mkdir(sub, 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o750))

	var mu sync.Mutex
	var changed []string
	w, err := NewWatcher(dir, func(path string) {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, path)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	go w.Run(t.Context())

	seen := func(path string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range changed {
			if p == path {
				return true
			}
		}
		return false
	}

	intro := filepath.Join(sub, "intro.tex")
	require.NoError(t, os.WriteFile(intro, []byte(`\section{Intro}`), 0o600))
	require.Eventually(t, func() bool { return seen(intro) }, 2*time.Second, 10*time.Millisecond)

	aux := filepath.Join(dir, "main.aux")
	require.NoError(t, os.WriteFile(aux, []byte(`\relax`), 0o600))
	main := filepath.Join(dir, "main.tex")
	require.NoError(t, os.WriteFile(main, []byte(`\documentclass{article}`), 0o600))
	require.Eventually(t, func() bool { return seen(main) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, seen(aux))

	added := filepath.Join(dir, "appendix")
	require.NoError(t, os.Mkdir(added, 0o750))
	// The new directory is registered asynchronously.
	nested := filepath.Join(added, "a.tex")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(nested, []byte("x"), 0o600)
		return seen(nested)
	}, 2*time.Second, 50*time.Millisecond)
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), func(string) {})
	assert.Error(t, err)
}
