// Package packaging runs the project's packaging step and checks that it
// produced a deployable artifact.
package packaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/artpar/pagepub/internal/core/domain"
)

// maxOutputInError bounds how much command output is quoted in an error.
const maxOutputInError = 2048

// Config configures the command packager.
type Config struct {
	// Command is the packaging command line, split shell-style. Environment
	// variables are expanded. Empty means the artifact is built elsewhere.
	Command string

	// Dir is the working directory, normally the project root.
	Dir string

	// ArtifactPath is where the packaging step leaves the artifact.
	ArtifactPath string

	// Timeout bounds the command run. Default: 10 minutes.
	Timeout time.Duration
}

// CommandPackager packages a project by running an external command.
type CommandPackager struct {
	args         []string
	dir          string
	artifactPath string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewCommandPackager parses the configured command line.
func NewCommandPackager(cfg Config, logger *slog.Logger) (*CommandPackager, error) {
	if cfg.ArtifactPath == "" {
		return nil, errors.New("packaging: artifact path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	var args []string
	if strings.TrimSpace(cfg.Command) != "" {
		parser := shellwords.NewParser()
		parser.ParseEnv = true
		parsed, err := parser.Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("packaging: parse command %q: %w", cfg.Command, err)
		}
		args = parsed
	}

	return &CommandPackager{
		args:         args,
		dir:          cfg.Dir,
		artifactPath: cfg.ArtifactPath,
		timeout:      cfg.Timeout,
		logger:       logger.With("component", "packaging"),
	}, nil
}

// Package runs the command and returns the artifact path. Every failure
// wraps domain.ErrPackaging.
func (p *CommandPackager) Package(ctx context.Context) (string, error) {
	if len(p.args) > 0 {
		if err := p.run(ctx); err != nil {
			return "", err
		}
	} else {
		p.logger.Debug("no packaging command configured, using existing artifact", "artifact", p.artifactPath)
	}

	if err := checkArtifact(p.artifactPath); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrPackaging, err)
	}
	return p.artifactPath, nil
}

func (p *CommandPackager) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Info("packaging project", "command", p.args[0], "dir", p.dir)
	start := time.Now()

	cmd := exec.CommandContext(ctx, p.args[0], p.args[1:]...)
	cmd.Dir = p.dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %w%s", domain.ErrPackaging, p.args[0], err, formatOutput(output))
	}

	p.logger.Info("packaging finished", "duration", time.Since(start))
	return nil
}

// checkArtifact requires a non-empty directory or a regular file.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", path, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("artifact %s is empty", path)
	}
	return nil
}

func formatOutput(output []byte) string {
	out := strings.TrimSpace(string(output))
	if out == "" {
		return ""
	}
	if len(out) > maxOutputInError {
		out = "..." + out[len(out)-maxOutputInError:]
	}
	return "\n" + out
}
