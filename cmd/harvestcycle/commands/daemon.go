package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/daemon"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	AutoSave string `name:"autosave" help:"Autosave interval, overrides autosave.interval"`
	Metrics  bool   `help:"Serve Prometheus metrics"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if d.AutoSave != "" {
		interval, err := time.ParseDuration(d.AutoSave)
		if err != nil || interval < 0 {
			return errors.ValidationError("invalid autosave interval").WithCause(err).WithContext("autosave", d.AutoSave).Build()
		}
		cfg.AutoSave.Interval = interval
	}
	if d.Metrics {
		cfg.Metrics.Enabled = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dm, err := daemon.New(cfg, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("Daemon running, waiting for shutdown signal")
	return dm.Run(ctx)
}
