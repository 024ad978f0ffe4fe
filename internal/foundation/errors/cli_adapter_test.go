package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("empty uri").Build(), expected: 2},
		{name: "load", err: LoadError("missing state").Build(), expected: 4},
		{name: "integrity", err: IntegrityError("duplicate endpoint").Build(), expected: 6},
		{name: "config", err: ConfigError("bad yaml").Build(), expected: 7},
		{name: "persist wrapped", err: fmt.Errorf("save: %w", PersistError("rename").Build()), expected: 9},
		{name: "daemon", err: DaemonError("already running").Build(), expected: 12},
		{name: "unclassified", err: errors.New("unknown"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := LoadError("cannot read overview").WithCause(cause).Build()

	quiet := NewCLIErrorAdapter(false, nil)
	if got := quiet.FormatError(err); got != "Error: cannot read overview: no such file or directory" {
		t.Errorf("unexpected quiet format %q", got)
	}

	verbose := NewCLIErrorAdapter(true, nil)
	if got := verbose.FormatError(err); !strings.Contains(got, "[load:fatal]") {
		t.Errorf("expected verbose format to include classification, got %q", got)
	}

	if got := quiet.FormatError(nil); got != "" {
		t.Errorf("expected empty string for nil error, got %q", got)
	}
}
