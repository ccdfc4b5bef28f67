// Package deny provides the denial-by-default executor. It is the executor
// used when no sandbox has been configured: every request is rejected before
// anything is spawned, so absent explicit configuration no command ever
// executes.
package deny

import (
	"context"
	"fmt"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
)

const denyReason = "sandbox execution is disabled: no executor has been configured"

// ExecutorConfig is the configuration for the deny executor.
type ExecutorConfig struct {
	Logger log.Logger
}

func (c *ExecutorConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Deny"})
	return nil
}

// Executor denies every execution request unconditionally.
type Executor struct {
	logger log.Logger
}

// NewExecutor creates a new deny executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Executor{logger: cfg.Logger}, nil
}

// Execute rejects the request without spawning anything.
func (e *Executor) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	e.logger.Debugf("Denied execution request: %v", req.Command)
	return model.NewDenied(denyReason), nil
}

// Validate rejects every request.
func (e *Executor) Validate(req model.ExecutionRequest) error {
	return fmt.Errorf("%s: %w", denyReason, model.ErrDenied)
}

// CheckAvailability reports the executor as down: it can never run anything.
func (e *Executor) CheckAvailability(ctx context.Context) error {
	return fmt.Errorf("%s: %w", denyReason, model.ErrUnavailable)
}

var _ executor.Executor = (*Executor)(nil)
