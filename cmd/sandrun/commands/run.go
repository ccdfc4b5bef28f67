package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sandrun/sandrun/internal/app/run"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	command    []string
	workingDir string
	envSpecs   []string
	inputFiles []string
	timeout    time.Duration
	stdin      bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Execute a command in the sandbox.")
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("workdir", "Working directory for command execution.").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("input", "Input files staged into the execution (relative to the allowed root). Can be repeated.").Short('i').StringsVar(&c.inputFiles)
	c.Cmd.Flag("timeout", "Execution timeout (e.g. 30s, 5m). Overrides the profile.").DurationVar(&c.timeout)
	c.Cmd.Flag("stdin", "Read the stdin payload from standard input.").BoolVar(&c.stdin)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	profile, err := c.rootCmd.LoadProfile(ctx)
	if err != nil {
		return err
	}

	cmdEnv, err := parseEnvSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	stdinPayload := ""
	if c.stdin {
		data, err := io.ReadAll(c.rootCmd.Stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin payload: %w", err)
		}
		stdinPayload = string(data)
	}

	exec, err := NewExecutor(profile, logger)
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	runner, err := NewRunner(profile, exec, logger)
	if err != nil {
		return fmt.Errorf("could not create script runner: %w", err)
	}

	svc, err := run.NewService(run.ServiceConfig{
		Executor: exec,
		Runner:   runner,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.RunCommand(ctx, run.CommandRequest{
		Command:    c.command,
		WorkingDir: c.workingDir,
		Env:        cmdEnv,
		Stdin:      stdinPayload,
		InputFiles: c.inputFiles,
		Timeout:    executionTimeout(c.timeout, profile),
	})
	if err != nil {
		return fmt.Errorf("could not execute command: %w", err)
	}

	for _, a := range result.Artifacts {
		logger.Infof("Artifact %s (%s, %d bytes): %s", a.Name, a.MediaType, a.SizeBytes, a.Path)
	}

	// Exit with the outcome's exit code.
	os.Exit(reportResult(result, c.rootCmd.Stdout, c.rootCmd.Stderr, logger))
	return nil
}
