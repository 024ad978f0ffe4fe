package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/harvestcycle/cmd/harvestcycle/commands"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("harvestcycle"),
		kong.Description("Maintain the state overview of OAI-PMH harvest cycles."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := ctx.Run(&commands.Global{Out: os.Stdout}, &cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
