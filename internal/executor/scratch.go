package executor

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sandrun/sandrun/internal/log"
)

// Scratch holds the per-execution input and output directories exposed to
// the sandboxed command. Both are created together and destroyed together on
// every exit path.
type Scratch struct {
	ID        string
	InputDir  string
	OutputDir string
}

// NewScratch creates the input/output scratch directories for one execution
// under the system temp directory.
func NewScratch(prefix string) (*Scratch, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	base, err := os.MkdirTemp("", fmt.Sprintf("%s-%s-*", prefix, id))
	if err != nil {
		return nil, fmt.Errorf("could not create scratch directory: %w", err)
	}

	s := &Scratch{
		ID:        id,
		InputDir:  filepath.Join(base, "input"),
		OutputDir: filepath.Join(base, "output"),
	}

	for _, dir := range []string{s.InputDir, s.OutputDir} {
		if err := os.Mkdir(dir, 0o750); err != nil {
			_ = os.RemoveAll(base)
			return nil, fmt.Errorf("could not create scratch directory %q: %w", dir, err)
		}
	}

	return s, nil
}

// BaseDir returns the directory containing both scratch directories. It is
// used as the default working directory and HOME for process executions.
func (s *Scratch) BaseDir() string {
	return filepath.Dir(s.InputDir)
}

// Stage copies a resolved host file into the input directory under its base
// name.
func (s *Scratch) Stage(srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("could not open input file %q: %w", srcPath, err)
	}
	defer src.Close()

	dstPath := filepath.Join(s.InputDir, filepath.Base(srcPath))
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("could not create staged file %q: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not stage %q: %w", srcPath, err)
	}

	return nil
}

// Cleanup removes both scratch directories. Safe to call multiple times and
// on every exit path. Errors are reported through the logger only: cleanup
// never masks the execution outcome.
func (s *Scratch) Cleanup(logger log.Logger) {
	base := filepath.Dir(s.InputDir)
	if err := os.RemoveAll(base); err != nil {
		logger.Warningf("Could not remove scratch directory %s: %v", base, err)
	}
}
