// Package io loads sandbox profiles from YAML files.
package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sandrun/sandrun/internal/model"
)

// ProfileYAMLRepository loads sandbox profiles from YAML files.
type ProfileYAMLRepository struct {
	fs fs.FS
}

// NewProfileYAMLRepository creates a new YAML profile repository.
func NewProfileYAMLRepository(filesystem fs.FS) *ProfileYAMLRepository {
	return &ProfileYAMLRepository{fs: filesystem}
}

// GetProfile loads a sandbox profile from a YAML file and returns a validated
// domain model.
func (r *ProfileYAMLRepository) GetProfile(ctx context.Context, path string) (model.Profile, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Profile{}, fmt.Errorf("reading profile file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Profile{}, ctx.Err()
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return model.Profile{}, fmt.Errorf("parsing YAML: %w", err)
	}

	m, err := profile.toModel()
	if err != nil {
		return model.Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	if err := m.Validate(); err != nil {
		return model.Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	return m, nil
}

// Profile represents the YAML structure of a sandbox profile.
type Profile struct {
	Executor     string            `yaml:"executor"`
	Timeout      string            `yaml:"timeout"`
	AllowedRoot  string            `yaml:"allowed_root"`
	Languages    []string          `yaml:"languages"`
	Interpreters map[string]string `yaml:"interpreters"`
	Docker       *DockerProfile    `yaml:"docker,omitempty"`
}

// DockerProfile represents the YAML structure of the container executor
// section.
type DockerProfile struct {
	Image          string  `yaml:"image"`
	MemoryMB       int     `yaml:"memory_mb"`
	CPUs           float64 `yaml:"cpus"`
	NetworkEnabled bool    `yaml:"network_enabled"`
	Hardened       bool    `yaml:"hardened"`
	PullImage      bool    `yaml:"pull_image"`
}

func (p Profile) toModel() (model.Profile, error) {
	m := model.Profile{
		Executor:    model.ExecutorKind(p.Executor),
		AllowedRoot: p.AllowedRoot,
	}

	if p.Timeout != "" {
		timeout, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return model.Profile{}, fmt.Errorf("invalid timeout %q: %w", p.Timeout, err)
		}
		m.Timeout = timeout
	}

	for _, lang := range p.Languages {
		m.Languages = append(m.Languages, model.Language(lang))
	}

	if len(p.Interpreters) > 0 {
		m.Interpreters = map[model.Language]string{}
		for lang, command := range p.Interpreters {
			m.Interpreters[model.Language(lang)] = command
		}
	}

	if p.Docker != nil {
		m.Docker = &model.DockerProfile{
			Image:          p.Docker.Image,
			MemoryMB:       p.Docker.MemoryMB,
			CPUs:           p.Docker.CPUs,
			NetworkEnabled: p.Docker.NetworkEnabled,
			Hardened:       p.Docker.Hardened,
			PullImage:      p.Docker.PullImage,
		}
	}

	return m, nil
}
