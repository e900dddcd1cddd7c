package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config  string `short:"c" default:"petpoker.hcl" type:"path" help:"HCL config file (missing file uses defaults)"`
	Debug   bool   `help:"Enable debug logging"`
	NoColor bool   `help:"Disable colour output"`
	Seed    *int64 `help:"Deterministic RNG seed (overrides equity.seed)"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Play     PlayCmd          `cmd:"" default:"withargs" help:"Play against the opponent in the terminal"`
	Serve    ServeCmd         `cmd:"" help:"Host a combat over websockets for a remote UI"`
	Simulate SimulateCmd      `cmd:"" help:"Pit an autopilot against the opponent over many matches"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("petpoker"),
		kong.Description("Heads-up pet combat poker against an autonomous opponent"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
