package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/daemon"
	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, g, cfg.State.Path, daemon.StoreOptions(cfg.State), cfg.Watch.Debounce)
}

// RunWatch prints a summary of the state file at start and after every
// change until ctx is done.
func RunWatch(ctx context.Context, g *Global, path string, opts []cycle.Option, debounce time.Duration) error {
	report := func(context.Context) {
		s, err := cycle.Open(path, opts...)
		if err != nil {
			slog.Warn("State file unreadable", logfields.Path(path), logfields.Error(err))
			return
		}
		ov := s.GetOverview()
		fmt.Fprintf(g.Out, "%s mode=%s cycle=%s last_run=%s endpoints=%d\n",
			g.now().Format(time.RFC3339), ov.Mode(), ov.CycleID(),
			formatOptionalTime(ov.LastRun()), s.Len())
	}

	sw, err := daemon.NewStateWatcher(path, debounce, report)
	if err != nil {
		return err
	}
	if err := sw.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sw.Stop() }()

	report(ctx)
	<-ctx.Done()
	return nil
}
