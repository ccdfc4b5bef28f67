package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

// Version is the application version (set via ldflags).
var Version = "dev"

type VersionCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewVersionCommand returns the version command.
func NewVersionCommand(rootCmd *RootCommand, app *kingpin.Application) *VersionCommand {
	c := &VersionCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("version", "Show the application version.")

	return c
}

func (c VersionCommand) Name() string { return c.Cmd.FullCommand() }

func (c VersionCommand) Run(ctx context.Context) error {
	fmt.Fprintln(c.rootCmd.Stdout, Version)
	return nil
}
