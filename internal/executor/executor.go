// Package executor defines the capability interface for sandboxed command
// execution and the helpers shared by its implementations.
//
// Expected conditions (denial, infrastructure failure, timeout, nonzero
// exit) never escape Execute as errors: they are represented as outcomes in
// the returned result. Only programming-error-class conditions (malformed
// executor configuration) surface as errors.
package executor

import (
	"context"

	"github.com/sandrun/sandrun/internal/model"
)

// Executor runs commands under an isolation strategy.
type Executor interface {
	// Execute runs the request and returns exactly one of the four outcomes.
	// The call blocks until a result is produced or the timeout fires.
	Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error)

	// Validate checks whether the request would be accepted. A non-nil error
	// wraps model.ErrDenied and carries the denial reason. Execute performs
	// the same validation itself, so callers may skip this pre-check.
	Validate(req model.ExecutionRequest) error

	// CheckAvailability probes whether the executor can currently run
	// anything. A non-nil error means it is down and its message is the
	// reason (e.g. container runtime unreachable).
	CheckAvailability(ctx context.Context) error
}

// Environment variable names under which executors expose the staged input
// directory and the artifact output directory to the executed command.
const (
	EnvInputDir  = "INPUT_DIR"
	EnvOutputDir = "OUTPUT_DIR"
)
