package executor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sandrun/sandrun/internal/model"
)

// CollectArtifacts scans the output directory for files produced by the
// executed command and converts each into an artifact descriptor. The scan
// is non-recursive unless recursive is set, and the result is sorted by name
// so callers see a stable order.
func CollectArtifacts(outputDir string, recursive bool) ([]model.Artifact, error) {
	var artifacts []model.Artifact

	if recursive {
		err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			artifacts = append(artifacts, model.NewArtifact(d.Name(), path, info.Size()))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("could not scan output directory %q: %w", outputDir, err)
		}
	} else {
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			return nil, fmt.Errorf("could not scan output directory %q: %w", outputDir, err)
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}

			info, err := e.Info()
			if err != nil {
				return nil, fmt.Errorf("could not stat artifact %q: %w", e.Name(), err)
			}

			artifacts = append(artifacts, model.NewArtifact(e.Name(), filepath.Join(outputDir, e.Name()), info.Size()))
		}
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })

	return artifacts, nil
}
