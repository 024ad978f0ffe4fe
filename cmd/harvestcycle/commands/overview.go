package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// OverviewCmd groups the cycle-wide subcommands.
type OverviewCmd struct {
	Set        OverviewSetCmd        `cmd:"" help:"Change cycle-wide attributes and save"`
	StartCycle OverviewStartCycleCmd `cmd:"" name:"start-cycle" help:"Begin a new cycle and print its identifier"`
}

// OverviewSetCmd implements 'overview set'.
type OverviewSetCmd struct {
	Mode          string `help:"Harvest mode (normal, retry, refresh)"`
	Scenario      string `help:"Default scenario (ListRecords, ListIdentifiers, ListPrefixes)"`
	ClearScenario bool   `name:"clear-scenario" help:"Remove the default scenario"`
	Interval      string `help:"Minimum time between two harvests of one endpoint, e.g. 24h"`
	LastRun       string `name:"last-run" help:"Start of the latest cycle (RFC 3339)"`
}

func (c *OverviewSetCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	ov := s.GetOverview()

	if c.Mode != "" {
		if err := ov.SetMode(cycle.HarvestMode(strings.ToLower(c.Mode))); err != nil {
			return err
		}
	}
	switch {
	case c.ClearScenario:
		if err := ov.SetScenario(""); err != nil {
			return err
		}
	case c.Scenario != "":
		if err := ov.SetScenario(cycle.Scenario(c.Scenario)); err != nil {
			return err
		}
	}
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return errors.ValidationError("invalid interval").WithCause(err).WithContext("interval", c.Interval).Build()
		}
		if err := ov.SetInterval(d); err != nil {
			return err
		}
	}
	if c.LastRun != "" {
		t, err := parseTimestamp("last-run", c.LastRun)
		if err != nil {
			return err
		}
		ov.SetLastRun(t)
	}

	if err := s.Save(context.Background()); err != nil {
		return err
	}
	return printOverview(g.Out, s)
}

// OverviewStartCycleCmd implements 'overview start-cycle'.
type OverviewStartCycleCmd struct{}

func (c *OverviewStartCycleCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	id := s.GetOverview().StartCycle(g.now())
	if err := s.Save(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(g.Out, id)
	return nil
}
