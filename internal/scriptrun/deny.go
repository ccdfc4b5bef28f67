package scriptrun

import (
	"context"
	"fmt"

	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
)

const denyReason = "script execution is disabled: no sandbox has been configured"

// DenyRunnerConfig is the configuration for the denial-by-default runner.
type DenyRunnerConfig struct {
	Logger log.Logger
}

func (c *DenyRunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scriptrun.DenyRunner"})
	return nil
}

// DenyRunner is the fallback Runner used when script execution is disabled.
// It supports no languages and denies every execution. Scripts remain
// readable resources: read access and execute access are independent
// capabilities, so the model types keep working without a sandbox.
type DenyRunner struct {
	logger log.Logger
}

// NewDenyRunner creates a new denial-by-default runner.
func NewDenyRunner(cfg DenyRunnerConfig) (*DenyRunner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &DenyRunner{logger: cfg.Logger}, nil
}

func (d *DenyRunner) SupportedLanguages() []model.Language { return []model.Language{} }

func (d *DenyRunner) Validate(script model.Script) error {
	return fmt.Errorf("%s: %w", denyReason, model.ErrDenied)
}

func (d *DenyRunner) Execute(ctx context.Context, script model.Script, opts ExecuteOpts) (*model.ExecutionResult, error) {
	d.logger.Debugf("Denied script execution for %s", script.ToolID())
	return model.NewDenied(denyReason), nil
}

var _ Runner = (*DenyRunner)(nil)
