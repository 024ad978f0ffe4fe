package commands

import (
	"fmt"
	"text/tabwriter"
)

// DueCmd implements the 'due' command.
type DueCmd struct {
	At string `help:"Evaluate at this time (RFC 3339) instead of now"`
}

func (c *DueCmd) Run(g *Global, root *CLI) error {
	now := g.now()
	if c.At != "" {
		t, err := parseTimestamp("at", c.At)
		if err != nil {
			return err
		}
		now = t
	}

	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	ov := s.GetOverview()

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	for _, key := range s.Endpoints() {
		ep, ok := s.LookupEndpoint(key.URI, key.Group)
		if !ok || !ep.Due(ov, now) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ep.URI(), ep.Group(), ep.EffectiveScenario(ov),
			formatOptionalTime(ep.IncrementalFrom()))
	}
	return tw.Flush()
}
