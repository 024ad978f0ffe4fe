package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// EndpointCmd groups the endpoint subcommands.
type EndpointCmd struct {
	Show EndpointShowCmd `cmd:"" help:"Print one endpoint record"`
	Set  EndpointSetCmd  `cmd:"" help:"Change an endpoint record, creating it if needed, and save"`
	Done EndpointDoneCmd `cmd:"" help:"Record the outcome of a harvest attempt and save"`
}

// EndpointRef names an endpoint on the command line.
type EndpointRef struct {
	URI   string `arg:"" name:"uri" help:"Endpoint base URI"`
	Group string `short:"g" required:"" help:"Endpoint group"`
}

// EndpointShowCmd implements 'endpoint show'.
type EndpointShowCmd struct {
	EndpointRef
}

func (c *EndpointShowCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	ep, ok := s.LookupEndpoint(c.URI, c.Group)
	if !ok {
		return errors.NewError(errors.CategoryNotFound, "endpoint not found").
			WithContext("uri", c.URI).
			WithContext("group", c.Group).
			Build()
	}
	printEndpoint(g.Out, ep, s.GetOverview())
	return nil
}

// EndpointSetCmd implements 'endpoint set'.
type EndpointSetCmd struct {
	EndpointRef
	Blocked       string `help:"Exclude the endpoint from harvesting" placeholder:"BOOL"`
	Retry         string `help:"Allow retry cycles to pick the endpoint" placeholder:"BOOL"`
	Refresh       string `help:"Allow refresh cycles to pick the endpoint" placeholder:"BOOL"`
	Incremental   string `help:"Allow selective harvesting from the last harvest date" placeholder:"BOOL"`
	Scenario      string `help:"Scenario for this endpoint"`
	ClearScenario bool   `name:"clear-scenario" help:"Use the cycle default scenario"`
	Count         int64  `help:"Number of successful harvests" default:"-1"`
	Increment     int64  `help:"Records added by the latest harvest" default:"-1"`
}

func (c *EndpointSetCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	ep, err := s.GetEndpoint(c.URI, c.Group)
	if err != nil {
		return err
	}

	for _, flag := range []struct {
		name  string
		raw   string
		apply func(bool)
	}{
		{"blocked", c.Blocked, ep.SetBlocked},
		{"retry", c.Retry, ep.SetRetry},
		{"refresh", c.Refresh, ep.SetRefresh},
		{"incremental", c.Incremental, ep.SetIncremental},
	} {
		if flag.raw == "" {
			continue
		}
		v, err := parseBool(flag.name, flag.raw)
		if err != nil {
			return err
		}
		flag.apply(v)
	}
	switch {
	case c.ClearScenario:
		if err := ep.SetScenario(""); err != nil {
			return err
		}
	case c.Scenario != "":
		if err := ep.SetScenario(cycle.Scenario(c.Scenario)); err != nil {
			return err
		}
	}
	// -1 leaves the value untouched; other negatives are rejected by the view.
	if c.Count != -1 {
		if err := ep.SetCount(c.Count); err != nil {
			return err
		}
	}
	if c.Increment != -1 {
		if err := ep.SetIncrement(c.Increment); err != nil {
			return err
		}
	}

	if err := s.Save(context.Background()); err != nil {
		return err
	}
	printEndpoint(g.Out, ep, s.GetOverview())
	return nil
}

// EndpointDoneCmd implements 'endpoint done'.
type EndpointDoneCmd struct {
	EndpointRef
	Failed bool `help:"The attempt did not complete a harvest"`
}

func (c *EndpointDoneCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	ep, err := s.GetEndpoint(c.URI, c.Group)
	if err != nil {
		return err
	}
	ep.DoneHarvesting(!c.Failed, g.now())
	if err := s.Save(context.Background()); err != nil {
		return err
	}
	printEndpoint(g.Out, ep, s.GetOverview())
	return nil
}

func printEndpoint(w io.Writer, ep *cycle.EndpointView, ov *cycle.OverviewView) {
	fmt.Fprintf(w, "URI:         %s\n", ep.URI())
	fmt.Fprintf(w, "Group:       %s\n", ep.Group())
	fmt.Fprintf(w, "Blocked:     %t\n", ep.Blocked())
	fmt.Fprintf(w, "Retry:       %t\n", ep.Retry())
	fmt.Fprintf(w, "Refresh:     %t\n", ep.Refresh())
	fmt.Fprintf(w, "Incremental: %t\n", ep.Incremental())
	fmt.Fprintf(w, "Scenario:    %s\n", ep.EffectiveScenario(ov))
	fmt.Fprintf(w, "Attempted:   %s\n", formatOptionalTime(ep.Attempted()))
	fmt.Fprintf(w, "Harvested:   %s\n", formatOptionalTime(ep.Harvested()))
	fmt.Fprintf(w, "Count:       %d\n", ep.Count())
	fmt.Fprintf(w, "Increment:   %d\n", ep.Increment())
}
