package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithQueryID(ctx, "q-1")
	ctx = WithRootFile(ctx, "/doc/main.tex")
	ctx = WithJob(ctx, "build_latex")

	lc := GetContext(ctx)
	if lc.QueryID != "q-1" || lc.RootFile != "/doc/main.tex" || lc.Job != "build_latex" {
		t.Fatalf("unexpected log context %+v", lc)
	}
}

func TestJobOverridesKeepQueryID(t *testing.T) {
	ctx := WithQueryID(context.Background(), "q-2")
	ctx = WithJob(ctx, "build_bibtex")
	ctx = WithJob(ctx, "build_latex")

	lc := GetContext(ctx)
	if lc.QueryID != "q-2" || lc.Job != "build_latex" {
		t.Fatalf("unexpected log context %+v", lc)
	}
}

func TestLoggingIncludesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx := WithJob(WithQueryID(context.Background(), "q-3"), "forward_sync")
	InfoContext(ctx, "sync finished", slog.Int("rectangles", 2))
	DebugContext(ctx, "debug line")

	out := buf.String()
	for _, want := range []string{"query_id=q-3", "job=forward_sync", "rectangles=2", "debug line"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
