package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/daemon"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Mode     string        `help:"Harvest mode (normal, retry, refresh)" default:"normal"`
	Scenario string        `help:"Default scenario (ListRecords, ListIdentifiers, ListPrefixes)"`
	Interval time.Duration `help:"Minimum time between two harvests of one endpoint"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	doc := cycle.NewDocument()
	doc.Overview.Mode = cycle.HarvestMode(strings.ToLower(i.Mode))
	doc.Overview.Scenario = cycle.Scenario(i.Scenario)
	doc.Overview.Interval = i.Interval

	s, err := cycle.Create(context.Background(), cfg.State.Path, doc,
		daemon.StoreOptions(cfg.State, cycle.WithLogger(slog.Default()))...)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "Created %s (%s)\n", s.Path(), s.Format())
	return nil
}
