package sandbox

import (
	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/executor/deny"
	"github.com/sandrun/sandrun/internal/executor/docker"
	"github.com/sandrun/sandrun/internal/executor/process"
	"github.com/sandrun/sandrun/internal/model"
	"github.com/sandrun/sandrun/internal/scriptrun"
)

// ExecutionRequest describes a single command execution inside a sandbox.
type ExecutionRequest = model.ExecutionRequest

// ExecutionResult is the tagged outcome of an execution.
type ExecutionResult = model.ExecutionResult

// Outcome discriminates the four mutually exclusive execution results.
type Outcome = model.Outcome

const (
	// OutcomeCompleted means the command ran to completion (any exit code).
	OutcomeCompleted = model.OutcomeCompleted
	// OutcomeTimedOut means the command exceeded its wall-clock bound.
	OutcomeTimedOut = model.OutcomeTimedOut
	// OutcomeFailed means the sandbox could not run the command.
	OutcomeFailed = model.OutcomeFailed
	// OutcomeDenied means policy rejected the request before execution.
	OutcomeDenied = model.OutcomeDenied
)

// Artifact is a file harvested from the execution's output directory.
type Artifact = model.Artifact

// Script is a named script file belonging to a named skill.
type Script = model.Script

// Language is a script language supported by the dispatch layer.
type Language = model.Language

const (
	LanguagePython     = model.LanguagePython
	LanguageBash       = model.LanguageBash
	LanguageShell      = model.LanguageShell
	LanguageJavaScript = model.LanguageJavaScript
	LanguageRuby       = model.LanguageRuby
	LanguageNone       = model.LanguageNone
)

// NewScript builds a script model, detecting the language from the file
// extension.
func NewScript(skill, fileName, baseDir string) Script {
	return model.NewScript(skill, fileName, baseDir)
}

// DetectLanguage returns the script language for a file name.
func DetectLanguage(fileName string) Language {
	return model.DetectLanguage(fileName)
}

// Sentinel errors returned (wrapped) by the SDK.
var (
	// ErrNotValid marks malformed requests and configuration.
	ErrNotValid = model.ErrNotValid
	// ErrDenied marks requests rejected by policy.
	ErrDenied = model.ErrDenied
	// ErrUnavailable marks executors whose backing runtime is not reachable.
	ErrUnavailable = model.ErrUnavailable
)

// Executor runs sandboxed commands. See the package documentation for the
// outcome contract.
type Executor = executor.Executor

// Runner dispatches skill scripts to an executor.
type Runner = scriptrun.Runner

// ScriptOpts are the per-invocation options of a script execution.
type ScriptOpts = scriptrun.ExecuteOpts

// ProcessConfig configures the process executor.
type ProcessConfig = process.ExecutorConfig

// NewProcessExecutor creates an executor that runs commands as host child
// processes.
func NewProcessExecutor(cfg ProcessConfig) (Executor, error) {
	return process.NewExecutor(cfg)
}

// DockerConfig configures the container executor.
type DockerConfig = docker.ExecutorConfig

// NewDockerExecutor creates an executor that runs commands in ephemeral
// Docker containers.
func NewDockerExecutor(cfg DockerConfig) (Executor, error) {
	return docker.NewExecutor(cfg)
}

// DenyConfig configures the denial-by-default executor.
type DenyConfig = deny.ExecutorConfig

// NewDenyExecutor creates an executor that denies every request.
func NewDenyExecutor(cfg DenyConfig) (Executor, error) {
	return deny.NewExecutor(cfg)
}

// ScriptRunnerConfig configures the script dispatch runner.
type ScriptRunnerConfig = scriptrun.ServiceConfig

// NewScriptRunner creates a runner that dispatches skill scripts to the
// configured executor.
func NewScriptRunner(cfg ScriptRunnerConfig) (Runner, error) {
	return scriptrun.NewService(cfg)
}

// DenyRunnerConfig configures the denial-by-default runner.
type DenyRunnerConfig = scriptrun.DenyRunnerConfig

// NewDenyRunner creates a runner that supports no languages and denies every
// script execution.
func NewDenyRunner(cfg DenyRunnerConfig) (Runner, error) {
	return scriptrun.NewDenyRunner(cfg)
}
