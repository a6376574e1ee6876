package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" default:"ostrobot.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	NoColor  bool   `help:"Disable colour output"`
}

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Run     RunCmd           `cmd:"" help:"Run the exploration loop"`
	Check   CheckCmd         `cmd:"" help:"Request a status report and show how recent messages classify"`
	Status  StatusCmd        `cmd:"" help:"Show the energy budget and journal summary without connecting"`
	Ledger  LedgerCmd        `cmd:"" help:"Manage the energy ledger"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ostrobot"),
		kong.Description("Automated explorer for the Ostrovy Telegram adventure game"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
