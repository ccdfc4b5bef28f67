package model

import (
	"fmt"
	"time"
)

// ExecutorKind selects the sandbox implementation commands run in.
type ExecutorKind string

const (
	// ExecutorKindProcess runs commands as host child processes.
	ExecutorKindProcess ExecutorKind = "process"
	// ExecutorKindDocker runs commands in ephemeral containers.
	ExecutorKindDocker ExecutorKind = "docker"
	// ExecutorKindNone disables execution, every request is denied.
	ExecutorKindNone ExecutorKind = "none"
)

// Profile is the user-facing sandbox configuration: which executor to use and
// how to constrain it.
type Profile struct {
	Executor    ExecutorKind
	Timeout     time.Duration
	AllowedRoot string
	Languages   []Language
	// Interpreters overrides the interpreter command per language, as full
	// command strings.
	Interpreters map[Language]string
	Docker       *DockerProfile
}

// DockerProfile is the container executor section of a profile.
type DockerProfile struct {
	Image          string
	MemoryMB       int
	CPUs           float64
	NetworkEnabled bool
	Hardened       bool
	PullImage      bool
}

// Validate validates the profile.
func (p Profile) Validate() error {
	switch p.Executor {
	case ExecutorKindProcess, ExecutorKindDocker, ExecutorKindNone:
	default:
		return fmt.Errorf("unknown executor kind %q: %w", p.Executor, ErrNotValid)
	}

	if p.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %w", ErrNotValid)
	}

	if p.Executor == ExecutorKindDocker {
		if p.Docker == nil || p.Docker.Image == "" {
			return fmt.Errorf("docker executor requires an image: %w", ErrNotValid)
		}
	}

	for _, lang := range p.Languages {
		if lang == LanguageNone {
			return fmt.Errorf("languages cannot contain an empty entry: %w", ErrNotValid)
		}
	}

	return nil
}
