// Package process provides the OS-process executor: commands run as direct
// child processes of the host with a watchdog timeout, a sanitized
// environment, staged input files and artifact harvesting.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
	"github.com/sandrun/sandrun/internal/pathsafe"
	utilsenv "github.com/sandrun/sandrun/internal/utils/env"
)

const (
	// defaultGracePeriod is how long the watchdog waits between the graceful
	// termination signal and the forced kill.
	defaultGracePeriod = 2 * time.Second

	scratchPrefix = "sandrun"
)

// ExecutorConfig is the configuration for the process executor.
type ExecutorConfig struct {
	// AllowedRoot confines input file resolution. Default: working directory.
	AllowedRoot string
	// GracePeriod between SIGTERM and SIGKILL on timeout. Default: 2s.
	GracePeriod time.Duration
	// OutputCapBytes caps captured stdout/stderr. Default: 1 MiB each.
	OutputCapBytes int
	// RecursiveArtifacts scans the output directory recursively.
	RecursiveArtifacts bool
	Logger             log.Logger
}

func (c *ExecutorConfig) defaults() error {
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.OutputCapBytes <= 0 {
		c.OutputCapBytes = executor.DefaultOutputCap
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Process"})
	return nil
}

// Executor runs commands as child OS processes.
type Executor struct {
	resolver    *pathsafe.Resolver
	gracePeriod time.Duration
	outputCap   int
	recursive   bool
	logger      log.Logger
}

// NewExecutor creates a new process executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	resolver, err := pathsafe.NewResolver(pathsafe.ResolverConfig{Root: cfg.AllowedRoot})
	if err != nil {
		return nil, fmt.Errorf("could not create path resolver: %w", err)
	}

	return &Executor{
		resolver:    resolver,
		gracePeriod: cfg.GracePeriod,
		outputCap:   cfg.OutputCapBytes,
		recursive:   cfg.RecursiveArtifacts,
		logger:      cfg.Logger,
	}, nil
}

// Validate checks the request shape and proves input file containment before
// anything is staged.
func (e *Executor) Validate(req model.ExecutionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %v: %w", err, model.ErrDenied)
	}

	for _, f := range req.InputFiles {
		if _, err := e.resolver.Resolve(f); err != nil {
			return fmt.Errorf("input file rejected: %w", err)
		}
	}

	return nil
}

// CheckAvailability always reports available: spawning processes has no
// external dependency.
func (e *Executor) CheckAvailability(ctx context.Context) error { return nil }

// Execute runs the command as a child process, blocking until one of the
// four outcomes is produced.
func (e *Executor) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	// 1. Fail closed before anything touches the filesystem.
	if err := e.Validate(req); err != nil {
		return model.NewDenied(err.Error()), nil
	}

	// 2. Per-execution scratch directories, destroyed on every exit path.
	scratch, err := executor.NewScratch(scratchPrefix)
	if err != nil {
		return model.NewFailed("could not set up execution directories", err), nil
	}
	defer scratch.Cleanup(e.logger)

	// 3. Stage resolved input files.
	for _, f := range req.InputFiles {
		resolved, err := e.resolver.Resolve(f)
		if err != nil {
			return model.NewDenied(err.Error()), nil
		}
		if err := scratch.Stage(resolved); err != nil {
			return model.NewFailed(fmt.Sprintf("could not stage input file %q", f), err), nil
		}
	}

	// 4. Build the child process. The command is never passed through a
	// shell: tokens go straight to exec.
	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Env = utilsenv.ToList(utilsenv.MergeMaps(e.baseEnv(scratch), req.Env))
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	} else {
		cmd.Dir = scratch.BaseDir()
	}

	// The child gets its own process group so the watchdog can terminate
	// everything it spawned, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Stdin payload is written and closed; without one the child reads EOF
	// immediately and can never block waiting on input.
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	stdout := executor.NewCappedBuffer(e.outputCap)
	stderr := executor.NewCappedBuffer(e.outputCap)
	if req.CaptureOutput {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = io.Discard
	}
	cmd.Stderr = stderr

	e.logger.Debugf("Executing command %v (timeout %s)", req.Command, req.Timeout)

	// 5. Spawn. A command that cannot start at all is Failed, never TimedOut.
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return model.NewFailed(fmt.Sprintf("could not start command %q", req.Command[0]), err), nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// 6. Watchdog: the timer bounds the running process only. Once the
	// process has exited, artifact collection proceeds even if the deadline
	// passes during the scan.
	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return e.finish(scratch, req, stdout, stderr, waitErr, time.Since(start)), nil

	case <-timer.C:
		e.logger.Warningf("Command %v exceeded timeout %s, terminating", req.Command, req.Timeout)
		e.terminate(cmd, done)
		return model.NewTimedOut(time.Since(start), stderr.String()), nil

	case <-ctx.Done():
		e.logger.Warningf("Command %v cancelled, terminating", req.Command)
		e.terminate(cmd, done)
		return model.NewFailed("execution cancelled before completion", ctx.Err()), nil
	}
}

// finish interprets a finished process and harvests artifacts.
func (e *Executor) finish(scratch *executor.Scratch, req model.ExecutionRequest, stdout, stderr *executor.CappedBuffer, waitErr error, elapsed time.Duration) *model.ExecutionResult {
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			// I/O plumbing broke, the run cannot be trusted.
			return model.NewFailed("command execution failed", waitErr)
		}
		// A nonzero exit code is a normal completed run, the caller
		// interprets it.
		exitCode = exitErr.ExitCode()
	}

	artifacts, err := executor.CollectArtifacts(scratch.OutputDir, e.recursive)
	if err != nil {
		return model.NewFailed("could not collect artifacts", err)
	}

	e.logger.Debugf("Command %v completed: exit code %d, %d artifact(s), %s", req.Command, exitCode, len(artifacts), elapsed)

	return model.NewCompleted(exitCode, stdout.String(), stderr.String(), elapsed, artifacts)
}

// terminate signals the whole process group to stop, escalating to a forced
// kill when it does not exit within the grace period. It returns once the
// process has been reaped, so no zombie is left behind.
func (e *Executor) terminate(cmd *exec.Cmd, done <-chan error) {
	pgid := cmd.Process.Pid

	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-done:
		return
	case <-time.After(e.gracePeriod):
	}

	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	<-done
}

// baseEnv is the minimal environment the child starts from. The host process
// environment is never inherited, so credentials cannot leak into sandboxed
// commands.
func (e *Executor) baseEnv(scratch *executor.Scratch) map[string]string {
	return map[string]string{
		"PATH":                "/usr/local/bin:/usr/bin:/bin",
		"HOME":                scratch.BaseDir(),
		"TMPDIR":              scratch.BaseDir(),
		"LANG":                "en_US.UTF-8",
		"TERM":                "dumb",
		executor.EnvInputDir:  scratch.InputDir,
		executor.EnvOutputDir: scratch.OutputDir,
	}
}

var _ executor.Executor = (*Executor)(nil)
