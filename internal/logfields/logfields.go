package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyEndpoint   = "endpoint"
	KeyGroup      = "group"
	KeyPath       = "path"
	KeyFormat     = "format"
	KeyCycleID    = "cycle_id"
	KeyMode       = "mode"
	KeyAttempt    = "attempt"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Endpoint(uri string) slog.Attr   { return slog.String(KeyEndpoint, uri) }
func Group(g string) slog.Attr        { return slog.String(KeyGroup, g) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func CycleID(id string) slog.Attr     { return slog.String(KeyCycleID, id) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
