package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sandrun/sandrun/internal/app/run"
	"github.com/sandrun/sandrun/internal/model"
)

// NewScriptCommand returns the parent command for script subcommands.
func NewScriptCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("script", "Work with skill scripts.")
}

type ScriptRunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	skillDir   string
	fileName   string
	args       []string
	envSpecs   []string
	inputFiles []string
	timeout    time.Duration
	stdin      bool
}

// NewScriptRunCommand returns the script run command.
func NewScriptRunCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ScriptRunCommand {
	c := &ScriptRunCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("run", "Execute a skill script in the sandbox.")
	c.Cmd.Arg("skill-dir", "Skill directory containing a scripts/ subdirectory.").Required().StringVar(&c.skillDir)
	c.Cmd.Arg("file", "Script file name inside scripts/.").Required().StringVar(&c.fileName)
	c.Cmd.Arg("args", "Arguments passed to the script.").StringsVar(&c.args)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("input", "Input files staged into the execution (relative to the allowed root). Can be repeated.").Short('i').StringsVar(&c.inputFiles)
	c.Cmd.Flag("timeout", "Execution timeout (e.g. 30s, 5m). Overrides the profile.").DurationVar(&c.timeout)
	c.Cmd.Flag("stdin", "Read the stdin payload from standard input.").BoolVar(&c.stdin)

	return c
}

func (c ScriptRunCommand) Name() string { return c.Cmd.FullCommand() }

func (c ScriptRunCommand) Run(ctx context.Context) error {
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

	baseDir, err := filepath.Abs(c.skillDir)
	if err != nil {
		return fmt.Errorf("could not resolve skill directory %q: %w", c.skillDir, err)
	}

	script := model.NewScript(filepath.Base(baseDir), c.fileName, baseDir)
	logger.Debugf("Running script %s", script.ToolID())

	result, err := svc.RunScript(ctx, run.ScriptRequest{
		Skill:      script.Skill,
		FileName:   c.fileName,
		BaseDir:    baseDir,
		Args:       c.args,
		Stdin:      stdinPayload,
		Env:        cmdEnv,
		InputFiles: c.inputFiles,
		Timeout:    executionTimeout(c.timeout, profile),
	})
	if err != nil {
		return fmt.Errorf("could not execute script: %w", err)
	}

	for _, a := range result.Artifacts {
		logger.Infof("Artifact %s (%s, %d bytes): %s", a.Name, a.MediaType, a.SizeBytes, a.Path)
	}

	// Exit with the outcome's exit code.
	os.Exit(reportResult(result, c.rootCmd.Stdout, c.rootCmd.Stderr, logger))
	return nil
}
