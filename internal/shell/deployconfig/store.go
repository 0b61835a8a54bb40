// Package deployconfig persists the record of the last successful publish
// in deployment.json at the project root.
package deployconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/artpar/pagepub/internal/core/domain"
)

// DefaultFileName is the record file name under the project root.
const DefaultFileName = "deployment.json"

// Store reads and writes the deployment record file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for fileName under projectRoot. An empty
// fileName selects DefaultFileName.
func NewStore(projectRoot, fileName string, logger *slog.Logger) *Store {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   filepath.Join(projectRoot, fileName),
		logger: logger.With("component", "deployconfig"),
	}
}

// Path returns the record file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the record. It returns nil, nil when the file does not exist
// or is empty. A file that cannot be parsed yields domain.ErrConfigCorrupt;
// treating it as "never published" could create a duplicate page.
func (s *Store) Load() (*domain.DeploymentRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var record domain.DeploymentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfigCorrupt, s.path, err)
	}

	s.logger.Debug("loaded deployment record", "path", s.path, "project_name", record.ProjectName)
	return &record, nil
}

// Save overwrites the record. The file is written to a temporary sibling
// and renamed into place, so readers see either the old or the new record.
func (s *Store) Save(record domain.DeploymentRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployment record: %w", err)
	}
	data = append(data, '\n')

	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}

	s.logger.Info("saved deployment record",
		"path", s.path,
		"project_name", record.ProjectName,
		"project_domain", record.ProjectDomain,
	)
	return nil
}

// Remove deletes the record, which is equivalent to never having published.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
