// Package project reads the host project settings the publish workflow
// depends on: display name, version, artifact location and server headers.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/artpar/pagepub/internal/core/domain"
)

// DefaultFileName is the settings file name under the project root.
const DefaultFileName = "project.yaml"

// DefaultDeployPath is used when the settings omit deployPath.
const DefaultDeployPath = "deploy"

var (
	// ErrSettingsNotFound is returned when the settings file does not exist.
	ErrSettingsNotFound = errors.New("project settings not found")

	// ErrInvalidSettings is returned when the settings file cannot be used.
	ErrInvalidSettings = errors.New("invalid project settings")
)

// EditorSettings holds host settings that affect how the page is served.
type EditorSettings struct {
	// ServerCOEP is the Cross-Origin-Embedder-Policy the page is served with.
	ServerCOEP string `yaml:"serverCOEP"`
}

// Settings is the parsed project settings file.
type Settings struct {
	Name       string                `yaml:"name"`
	Version    domain.ProjectVersion `yaml:"version"`
	DeployPath string                `yaml:"deployPath"`
	Editor     EditorSettings        `yaml:"editor"`

	// Root is the absolute project root the settings were loaded from.
	Root string `yaml:"-"`
}

// ArtifactPath returns the absolute path of the packaged artifact.
func (s Settings) ArtifactPath() string {
	if filepath.IsAbs(s.DeployPath) {
		return s.DeployPath
	}
	return filepath.Join(s.Root, s.DeployPath)
}

// Load reads fileName (DefaultFileName when empty) under root.
func Load(root, fileName string) (*Settings, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	path := filepath.Join(absRoot, fileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	settings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	settings.Root = absRoot
	return settings, nil
}

// Parse decodes settings and applies defaults.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSettings)
	}
	if s.DeployPath == "" {
		s.DeployPath = DefaultDeployPath
	}
	return &s, nil
}
