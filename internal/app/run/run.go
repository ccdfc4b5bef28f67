// Package run implements the application service behind command and script
// executions: it validates the request, delegates to the configured sandbox
// and maps the outcome for the presentation layer.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
	"github.com/sandrun/sandrun/internal/scriptrun"
)

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Executor executor.Executor
	Runner   scriptrun.Runner
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("script runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service handles sandboxed command and script executions.
type Service struct {
	exec   executor.Executor
	runner scriptrun.Runner
	logger log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		exec:   cfg.Executor,
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// CommandRequest contains the parameters for executing a raw command.
type CommandRequest struct {
	Command    []string
	WorkingDir string
	Env        map[string]string
	Stdin      string
	InputFiles []string
	Timeout    time.Duration
}

// RunCommand executes a raw command in the sandbox.
func (s *Service) RunCommand(ctx context.Context, req CommandRequest) (*model.ExecutionResult, error) {
	result, err := s.exec.Execute(ctx, model.ExecutionRequest{
		Command:       req.Command,
		WorkingDir:    req.WorkingDir,
		Env:           req.Env,
		Stdin:         req.Stdin,
		InputFiles:    req.InputFiles,
		Timeout:       req.Timeout,
		CaptureOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not execute command: %w", err)
	}

	s.logger.Debugf("Executed command %v: %s", req.Command, result.Outcome)

	return result, nil
}

// ScriptRequest contains the parameters for executing a skill script.
type ScriptRequest struct {
	Skill      string
	FileName   string
	BaseDir    string
	Args       []string
	Stdin      string
	Env        map[string]string
	InputFiles []string
	Timeout    time.Duration
}

// RunScript executes a named skill script through the dispatch layer.
func (s *Service) RunScript(ctx context.Context, req ScriptRequest) (*model.ExecutionResult, error) {
	script := model.NewScript(req.Skill, req.FileName, req.BaseDir)

	result, err := s.runner.Execute(ctx, script, scriptrun.ExecuteOpts{
		Args:       req.Args,
		Stdin:      req.Stdin,
		Env:        req.Env,
		InputFiles: req.InputFiles,
		Timeout:    req.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not execute script: %w", err)
	}

	s.logger.Debugf("Executed script %s: %s", script.ToolID(), result.Outcome)

	return result, nil
}

// Doctor runs the preflight checks of the configured sandbox.
func (s *Service) Doctor(ctx context.Context) []model.CheckResult {
	checks := []model.CheckResult{}

	if err := s.exec.CheckAvailability(ctx); err != nil {
		checks = append(checks, model.CheckResult{ID: "executor", Status: model.CheckStatusError, Message: err.Error()})
	} else {
		checks = append(checks, model.CheckResult{ID: "executor", Status: model.CheckStatusOK, Message: "executor is available"})
	}

	langs := s.runner.SupportedLanguages()
	if len(langs) == 0 {
		checks = append(checks, model.CheckResult{ID: "scripts", Status: model.CheckStatusError, Message: "script execution is disabled"})
	} else {
		checks = append(checks, model.CheckResult{ID: "scripts", Status: model.CheckStatusOK, Message: fmt.Sprintf("script languages: %v", langs)})
	}

	return checks
}
