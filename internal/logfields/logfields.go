package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyQueryID    = "query_id"
	KeyJob        = "job"
	KeyTool       = "tool"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyPass       = "pass"
	KeyReason     = "reason"
	KeyDurationMS = "duration_ms"
	KeyExitCode   = "exit_code"
	KeyError      = "error"
)

func QueryID(id string) slog.Attr { return slog.String(KeyQueryID, id) }
func Job(name string) slog.Attr   { return slog.String(KeyJob, name) }
func Tool(name string) slog.Attr  { return slog.String(KeyTool, name) }
func File(name string) slog.Attr  { return slog.String(KeyFile, name) }
func Path(p string) slog.Attr     { return slog.String(KeyPath, p) }
func Pass(n int) slog.Attr        { return slog.Int(KeyPass, n) }
func Reason(r string) slog.Attr   { return slog.String(KeyReason, r) }
func ExitCode(code int) slog.Attr { return slog.Int(KeyExitCode, code) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
