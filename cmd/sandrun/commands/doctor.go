package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	apprun "github.com/sandrun/sandrun/internal/app/run"
	"github.com/sandrun/sandrun/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the configured sandbox.")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	profile, err := c.rootCmd.LoadProfile(ctx)
	if err != nil {
		return err
	}

	exec, err := NewExecutor(profile, logger)
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	runner, err := NewRunner(profile, exec, logger)
	if err != nil {
		return fmt.Errorf("could not create script runner: %w", err)
	}

	svc, err := apprun.NewService(apprun.ServiceConfig{
		Executor: exec,
		Runner:   runner,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	fmt.Fprintf(out, "Checking %s sandbox...\n", profile.Executor)

	results := svc.Doctor(ctx)
	errors := 0
	for _, r := range results {
		icon := "OK"
		if r.Status == model.CheckStatusError {
			icon = "XX"
			errors++
		}
		fmt.Fprintf(out, "  %s %-10s %s\n", icon, r.ID, r.Message)
	}

	fmt.Fprintln(out)
	if errors == 0 {
		fmt.Fprintln(out, "All checks passed!")
		return nil
	}

	return fmt.Errorf("preflight checks failed with %d error(s)", errors)
}
