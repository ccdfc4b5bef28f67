package model

import (
	"fmt"
	"regexp"
	"time"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ExecutionRequest describes a single command execution inside a sandbox.
// It is built per call and discarded after the result is returned.
type ExecutionRequest struct {
	// Command is the program and its arguments (e.g. ["ls", "-la"]). It is
	// never passed through a shell unless the caller supplies one explicitly.
	Command []string
	// WorkingDir is the directory to run the command in (optional).
	WorkingDir string
	// Env contains extra environment variables merged on top of the
	// executor's minimal base environment.
	Env map[string]string
	// Stdin is the payload written to the command's standard input. Empty
	// means standard input is closed immediately.
	Stdin string
	// InputFiles are paths (relative to the executor's allowed root) staged
	// into the execution's input directory before launch.
	InputFiles []string
	// Timeout is the wall-clock bound for the execution. Mandatory.
	Timeout time.Duration
	// CaptureOutput selects whether stdout is captured into the result.
	// Stderr is always captured so timed-out runs can report partial output.
	CaptureOutput bool
}

// Validate validates the execution request.
func (r *ExecutionRequest) Validate() error {
	if len(r.Command) == 0 {
		return fmt.Errorf("command is required: %w", ErrNotValid)
	}
	for i, tok := range r.Command {
		if tok == "" {
			return fmt.Errorf("command token %d is empty: %w", i, ErrNotValid)
		}
	}

	if r.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %w", ErrNotValid)
	}

	for k := range r.Env {
		if !envKeyRegexp.MatchString(k) {
			return fmt.Errorf("invalid environment variable key %q: %w", k, ErrNotValid)
		}
	}

	return nil
}
