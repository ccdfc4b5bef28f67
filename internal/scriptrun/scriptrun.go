// Package scriptrun adapts named skill scripts into sandbox executions. It is
// a thin dispatch layer: it picks the interpreter for the script's language,
// builds the command and delegates to a configured executor, enforcing its own
// language allow-list independently of the executor's checks.
package scriptrun

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/shlex"

	"github.com/sandrun/sandrun/internal/executor"
	"github.com/sandrun/sandrun/internal/log"
	"github.com/sandrun/sandrun/internal/model"
)

// defaultTimeout bounds script executions when the caller does not set one.
const defaultTimeout = 30 * time.Second

// defaultInterpreters maps each language to the interpreter command used to
// run its scripts. Overridable per language through the service config.
var defaultInterpreters = map[model.Language][]string{
	model.LanguagePython:     {"python3"},
	model.LanguageBash:       {"bash"},
	model.LanguageShell:      {"sh"},
	model.LanguageJavaScript: {"node"},
	model.LanguageRuby:       {"ruby"},
}

// ExecuteOpts are the per-invocation options of a script execution.
type ExecuteOpts struct {
	// Args are appended after the script path on the interpreter command line.
	Args []string
	// Stdin is the payload written to the script's standard input.
	Stdin string
	// Env contains extra environment variables for the script.
	Env map[string]string
	// InputFiles are staged into the execution's input directory.
	InputFiles []string
	// Timeout bounds the execution. Zero means the service default.
	Timeout time.Duration
}

// Runner knows how to execute skill scripts in a sandbox.
type Runner interface {
	SupportedLanguages() []model.Language
	Validate(script model.Script) error
	Execute(ctx context.Context, script model.Script, opts ExecuteOpts) (*model.ExecutionResult, error)
}

// ServiceConfig is the configuration for the script dispatch service.
type ServiceConfig struct {
	// Executor runs the built commands. Required.
	Executor executor.Executor
	// Languages is the allow-list of script languages this service will
	// dispatch. Default: every language with a default interpreter.
	Languages []model.Language
	// Interpreters overrides the interpreter command per language. Values are
	// full command strings tokenized shell-style (e.g. "python3 -u").
	Interpreters map[model.Language]string
	// DefaultTimeout applies when an execution does not set one. Default: 30s.
	DefaultTimeout time.Duration
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if len(c.Languages) == 0 {
		for lang := range defaultInterpreters {
			c.Languages = append(c.Languages, lang)
		}
		sort.Slice(c.Languages, func(i, j int) bool { return c.Languages[i] < c.Languages[j] })
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scriptrun.Service"})
	return nil
}

// Service is the script dispatch Runner backed by an executor.
type Service struct {
	exec         executor.Executor
	languages    map[model.Language]struct{}
	ordered      []model.Language
	interpreters map[model.Language][]string
	timeout      time.Duration
	logger       log.Logger
}

// NewService creates a new script dispatch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	languages := map[model.Language]struct{}{}
	for _, lang := range cfg.Languages {
		if lang == model.LanguageNone {
			return nil, fmt.Errorf("cannot allow an undetected language: %w", model.ErrNotValid)
		}
		if _, ok := defaultInterpreters[lang]; !ok {
			if _, ok := cfg.Interpreters[lang]; !ok {
				return nil, fmt.Errorf("language %q has no interpreter: %w", lang, model.ErrNotValid)
			}
		}
		languages[lang] = struct{}{}
	}

	interpreters := map[model.Language][]string{}
	for lang, command := range defaultInterpreters {
		interpreters[lang] = command
	}
	for lang, raw := range cfg.Interpreters {
		tokens, err := shlex.Split(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid interpreter command %q for %q: %w", raw, lang, err)
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("empty interpreter command for %q: %w", lang, model.ErrNotValid)
		}
		interpreters[lang] = tokens
	}

	return &Service{
		exec:         cfg.Executor,
		languages:    languages,
		ordered:      cfg.Languages,
		interpreters: interpreters,
		timeout:      cfg.DefaultTimeout,
		logger:       cfg.Logger,
	}, nil
}

// SupportedLanguages returns the languages this service is willing to
// dispatch.
func (s *Service) SupportedLanguages() []model.Language {
	langs := make([]model.Language, len(s.ordered))
	copy(langs, s.ordered)
	return langs
}

// Validate rejects scripts whose language is outside the allow-list, naming
// both the offending language and the supported set.
func (s *Service) Validate(script model.Script) error {
	if err := script.Validate(); err != nil {
		return fmt.Errorf("invalid script: %v: %w", err, model.ErrDenied)
	}

	if _, ok := s.languages[script.Language]; !ok {
		lang := string(script.Language)
		if script.Language == model.LanguageNone {
			lang = "unknown"
		}
		return fmt.Errorf("script language %q is not supported (supported: %v): %w", lang, s.ordered, model.ErrDenied)
	}

	return nil
}

// Execute builds the interpreter command for the script and delegates to the
// executor, translating its result 1:1.
func (s *Service) Execute(ctx context.Context, script model.Script, opts ExecuteOpts) (*model.ExecutionResult, error) {
	if err := s.Validate(script); err != nil {
		return model.NewDenied(err.Error()), nil
	}

	command := append([]string{}, s.interpreters[script.Language]...)
	command = append(command, script.Path())
	command = append(command, opts.Args...)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}

	s.logger.Debugf("Dispatching script %s (%s) as %v", script.ToolID(), script.Language, command)

	return s.exec.Execute(ctx, model.ExecutionRequest{
		Command:       command,
		Env:           opts.Env,
		Stdin:         opts.Stdin,
		InputFiles:    opts.InputFiles,
		Timeout:       timeout,
		CaptureOutput: true,
	})
}

var _ Runner = (*Service)(nil)
