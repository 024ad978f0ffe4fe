package commands

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/harvestcycle/internal/config"
	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/daemon"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// Global carries what every command needs besides flags.
type Global struct {
	Out io.Writer
	// Now is the clock used for timestamps; nil means time.Now.
	Now func() time.Time
}

func (g *Global) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional)" type:"path"`
	State   string           `short:"s" help:"State file path, overrides state.path" type:"path"`
	Format  string           `short:"f" help:"State file format (json, yaml, xml), overrides state.format"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init     InitCmd     `cmd:"" help:"Create a new state file"`
	Show     ShowCmd     `cmd:"" help:"Print the overview and its endpoints"`
	Overview OverviewCmd `cmd:"" help:"Inspect or change cycle-wide attributes"`
	Endpoint EndpointCmd `cmd:"" help:"Inspect or change endpoint records"`
	Due      DueCmd      `cmd:"" help:"List endpoints due for harvesting"`
	Watch    WatchCmd    `cmd:"" help:"Print a summary whenever the state file changes"`
	Daemon   DaemonCmd   `cmd:"" help:"Keep the overview open with autosave and metrics"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig reads the configuration file if one was given, applies the
// command line overrides and replaces the default logger with the configured one.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.State != "" {
		cfg.State.Path = c.State
	}
	if c.Format != "" {
		cfg.State.Format = c.Format
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr, c.Verbose))
	return cfg, nil
}

// OpenStore loads the configured state file.
func (c *CLI) OpenStore() (*cycle.Store, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cycle.Open(cfg.State.Path, daemon.StoreOptions(cfg.State, cycle.WithLogger(slog.Default()))...)
}

func parseTimestamp(flag, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.ValidationError("invalid timestamp, expected RFC 3339").
			WithCause(err).
			WithContext("flag", flag).
			Build()
	}
	return t, nil
}

func parseBool(flag, raw string) (bool, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.ValidationError("invalid boolean").
			WithCause(err).
			WithContext("flag", flag).
			Build()
	}
	return v, nil
}

func formatOptionalTime(t foundation.Option[time.Time]) string {
	if !t.IsSome() {
		return "-"
	}
	return t.Unwrap().Format(time.RFC3339)
}
