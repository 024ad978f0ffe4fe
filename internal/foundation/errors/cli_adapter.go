package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryNotFound:
		return 3
	case CategoryLoad:
		return 4
	case CategoryIntegrity:
		return 6
	case CategoryConfig:
		return 7
	case CategoryPersist:
		return 9
	case CategoryInternal:
		return 10
	case CategoryDaemon:
		return 12
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok || a.verbose {
		return fmt.Sprintf("Error: %v", err)
	}
	if classified.Cause() != nil {
		return fmt.Sprintf("Error: %s: %v", classified.Message(), classified.Cause())
	}
	return "Error: " + classified.Message()
}

// HandleError logs the error, prints it and exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.logError(err)
	fmt.Fprintln(a.out, a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{
		slog.String("category", string(classified.Category())),
	}
	if classified.IsFatal() {
		attrs = append(attrs, slog.Bool("fatal", true))
	}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	for k, v := range classified.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), slog.LevelError, classified.Message(), attrs...)
}
