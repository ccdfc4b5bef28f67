package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/executor/deny"
	"github.com/sandrun/sandrun/internal/executor/docker"
	"github.com/sandrun/sandrun/internal/executor/process"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
	"github.com/sandrun/sandrun/internal/scriptrun"
	storageio "github.com/sandrun/sandrun/internal/storage/io"
	utilsenv "github.com/sandrun/sandrun/internal/utils/env"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// defaultTimeout applies when neither the profile nor the command set one.
const defaultTimeout = 30 * time.Second

// Exit codes for non-completed outcomes. A completed execution mirrors the
// sandboxed command's own exit code instead.
const (
	ExitCodeTimedOut = 124
	ExitCodeFailed   = 125
	ExitCodeDenied   = 126
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug       bool
	NoLog       bool
	NoColor     bool
	LoggerType  string
	ProfilePath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("profile", "Path to the sandbox profile file.").Envar("SANDRUN_PROFILE").Default(DefaultProfilePath()).StringVar(&c.ProfilePath)

	return c
}

// DefaultProfilePath is where the profile is looked up when --profile is not
// set.
func DefaultProfilePath() string {
	return filepath.Join(homedir.HomeDir(), ".sandrun", "profile.yaml")
}

// LoadProfile loads the sandbox profile from the configured path. A missing
// file at the default location falls back to the process executor profile,
// a missing file at an explicit location is an error.
func (c *RootCommand) LoadProfile(ctx context.Context) (model.Profile, error) {
	_, err := os.Stat(c.ProfilePath)
	if err != nil {
		if os.IsNotExist(err) && c.ProfilePath == DefaultProfilePath() {
			return model.Profile{Executor: model.ExecutorKindProcess}, nil
		}
		return model.Profile{}, fmt.Errorf("could not read profile %q: %w", c.ProfilePath, err)
	}

	repo := storageio.NewProfileYAMLRepository(os.DirFS(filepath.Dir(c.ProfilePath)))
	return repo.GetProfile(ctx, filepath.Base(c.ProfilePath))
}

// NewExecutor builds the executor the profile selects.
func NewExecutor(profile model.Profile, logger log.Logger) (executor.Executor, error) {
	switch profile.Executor {
	case model.ExecutorKindProcess:
		return process.NewExecutor(process.ExecutorConfig{
			AllowedRoot: profile.AllowedRoot,
			Logger:      logger,
		})

	case model.ExecutorKindDocker:
		return docker.NewExecutor(docker.ExecutorConfig{
			Image:          profile.Docker.Image,
			AllowedRoot:    profile.AllowedRoot,
			MemoryMB:       profile.Docker.MemoryMB,
			CPUs:           profile.Docker.CPUs,
			NetworkEnabled: profile.Docker.NetworkEnabled,
			Hardened:       profile.Docker.Hardened,
			PullImage:      profile.Docker.PullImage,
			Logger:         logger,
		})

	case model.ExecutorKindNone:
		return deny.NewExecutor(deny.ExecutorConfig{Logger: logger})
	}

	return nil, fmt.Errorf("unknown executor kind %q: %w", profile.Executor, model.ErrNotValid)
}

// NewRunner builds the script runner the profile selects.
func NewRunner(profile model.Profile, exec executor.Executor, logger log.Logger) (scriptrun.Runner, error) {
	if profile.Executor == model.ExecutorKindNone {
		return scriptrun.NewDenyRunner(scriptrun.DenyRunnerConfig{Logger: logger})
	}

	return scriptrun.NewService(scriptrun.ServiceConfig{
		Executor:       exec,
		Languages:      profile.Languages,
		Interpreters:   profile.Interpreters,
		DefaultTimeout: profile.Timeout,
		Logger:         logger,
	})
}

// executionTimeout resolves the effective timeout: command flag, then
// profile, then the application default.
func executionTimeout(flagTimeout time.Duration, profile model.Profile) time.Duration {
	if flagTimeout > 0 {
		return flagTimeout
	}
	if profile.Timeout > 0 {
		return profile.Timeout
	}
	return defaultTimeout
}

// parseEnvSpecs parses repeated --env values.
func parseEnvSpecs(specs []string) (map[string]string, error) {
	return utilsenv.ParseSpecs(specs)
}

// reportResult writes the result's captured output and returns the process
// exit code for the outcome.
func reportResult(res *model.ExecutionResult, stdout, stderr io.Writer, logger log.Logger) int {
	switch res.Outcome {
	case model.OutcomeCompleted:
		fmt.Fprint(stdout, res.Stdout)
		fmt.Fprint(stderr, res.Stderr)
		return res.ExitCode

	case model.OutcomeTimedOut:
		fmt.Fprint(stderr, res.Stderr)
		logger.Errorf("Execution timed out after %s", res.Duration)
		return ExitCodeTimedOut

	case model.OutcomeDenied:
		logger.Errorf("Execution denied: %s", res.Reason)
		return ExitCodeDenied

	case model.OutcomeFailed:
		if res.Cause != nil {
			logger.Errorf("Execution failed: %s: %v", res.Reason, res.Cause)
		} else {
			logger.Errorf("Execution failed: %s", res.Reason)
		}
		return ExitCodeFailed
	}

	logger.Errorf("Unknown execution outcome %q", res.Outcome)
	return ExitCodeFailed
}
