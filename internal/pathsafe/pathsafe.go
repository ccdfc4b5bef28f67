// Package pathsafe resolves caller-supplied relative paths against an allowed
// root directory, rejecting anything that would escape it. Every executor
// routes input file resolution through this package before touching the
// filesystem. The policy is reject-by-default: when containment cannot be
// proven, resolution fails.
package pathsafe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/sandrun/sandrun/internal/model"
)

// ResolverConfig is the configuration for the path resolver.
type ResolverConfig struct {
	// Root is the allowed root directory. Default: current working directory.
	Root string
}

func (c *ResolverConfig) defaults() error {
	if c.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get working directory: %w", err)
		}
		c.Root = wd
	}

	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("could not resolve root %q: %w", c.Root, err)
	}
	c.Root = abs

	return nil
}

// Resolver resolves relative paths inside an allowed root.
type Resolver struct {
	root         string
	resolvedRoot string
}

// NewResolver creates a new path resolver for an allowed root.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Resolve symlinks on the root once so containment re-checks compare
	// against the real directory.
	resolvedRoot, err := filepath.EvalSymlinks(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve allowed root %q: %w", cfg.Root, err)
	}

	return &Resolver{
		root:         cfg.Root,
		resolvedRoot: resolvedRoot,
	}, nil
}

// Root returns the allowed root directory.
func (r *Resolver) Root() string { return r.root }

// Resolve resolves a relative path against the allowed root and returns the
// absolute result. It fails wrapping model.ErrDenied when the path is empty,
// absolute, or would land outside the root after normalization and symlink
// resolution.
func (r *Resolver) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path: %w", model.ErrDenied)
	}

	// Absolute paths would override the root, reject instead of re-rooting:
	// silently reading a different file than the caller named is exactly the
	// kind of ambiguity this resolver forbids.
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q is not allowed: %w", rel, model.ErrDenied)
	}

	joined, err := securejoin.SecureJoin(r.root, rel)
	if err != nil {
		return "", fmt.Errorf("path %q cannot be confined to %q: %w", rel, r.root, model.ErrDenied)
	}

	// Re-check containment with symlinks resolved. A nonexistent target is
	// fine here (SecureJoin already proved lexical containment), any other
	// resolution problem is a violation.
	resolved, err := filepath.EvalSymlinks(joined)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return joined, nil
	case err != nil:
		return "", fmt.Errorf("path %q cannot be verified: %w", rel, model.ErrDenied)
	}

	if resolved != r.resolvedRoot && !strings.HasPrefix(resolved, r.resolvedRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the allowed root %q: %w", rel, r.root, model.ErrDenied)
	}

	return joined, nil
}
