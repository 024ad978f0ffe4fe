package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/harvestcycle/internal/cycle"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	Output string `short:"o" help:"Output format: text, json, yaml or xml" default:"text" enum:"text,json,yaml,xml"`
}

func (c *ShowCmd) Run(g *Global, root *CLI) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	if c.Output == "text" {
		return printOverview(g.Out, s)
	}

	data, err := cycle.Encode(s.Snapshot(), cycle.Format(c.Output))
	if err != nil {
		return errors.InternalError("failed to encode overview").WithCause(err).Build()
	}
	_, err = g.Out.Write(data)
	return err
}

func printOverview(w io.Writer, s *cycle.Store) error {
	ov := s.GetOverview()
	fmt.Fprintf(w, "State:     %s (%s)\n", s.Path(), s.Format())
	fmt.Fprintf(w, "Mode:      %s\n", ov.Mode())
	fmt.Fprintf(w, "Scenario:  %s\n", displayScenario(ov.Scenario()))
	fmt.Fprintf(w, "Interval:  %s\n", ov.Interval())
	fmt.Fprintf(w, "Last run:  %s\n", formatOptionalTime(ov.LastRun()))
	if id := ov.CycleID(); id != "" {
		fmt.Fprintf(w, "Cycle:     %s\n", id)
	}
	fmt.Fprintf(w, "Endpoints: %d\n", s.Len())
	if s.Len() == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URI\tGROUP\tFLAGS\tSCENARIO\tATTEMPTED\tHARVESTED\tCOUNT")
	for _, key := range s.Endpoints() {
		ep, ok := s.LookupEndpoint(key.URI, key.Group)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			ep.URI(), ep.Group(), endpointFlags(ep),
			ep.EffectiveScenario(ov),
			formatOptionalTime(ep.Attempted()), formatOptionalTime(ep.Harvested()),
			ep.Count())
	}
	return tw.Flush()
}

func endpointFlags(ep *cycle.EndpointView) string {
	flags := ""
	for _, f := range []struct {
		set  bool
		char string
	}{
		{ep.Blocked(), "b"},
		{ep.Retry(), "r"},
		{ep.Refresh(), "f"},
		{ep.Incremental(), "i"},
	} {
		if f.set {
			flags += f.char
		} else {
			flags += "-"
		}
	}
	return flags
}

func displayScenario(s cycle.Scenario) string {
	if s == "" {
		return "(default)"
	}
	return string(s)
}
