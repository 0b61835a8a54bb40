// Package browser opens URLs in the user's default browser.
package browser

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/browser"
)

// Launcher opens URLs. Opening is best effort: callers treat errors as
// advisory because the user can always navigate manually.
type Launcher struct {
	enabled bool
	open    func(url string) error
	out     io.Writer
	logger  *slog.Logger
}

// Config configures the launcher.
type Config struct {
	// Enabled turns browser launching on. When off, URLs are only printed.
	Enabled bool

	// Out receives the "open this URL" hint. Default: os.Stderr.
	Out io.Writer
}

// NewLauncher creates a launcher backed by the platform URL opener.
func NewLauncher(cfg Config, logger *slog.Logger) *Launcher {
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}
	if logger == nil {
		logger = slog.Default()
	}
	// The opener's own chatter would interleave with progress output.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return &Launcher{
		enabled: cfg.Enabled,
		open:    browser.OpenURL,
		out:     cfg.Out,
		logger:  logger.With("component", "browser"),
	}
}

// Open prints url and, when enabled, opens it in the default browser.
func (l *Launcher) Open(url string) error {
	fmt.Fprintf(l.out, "Open in your browser: %s\n", url)
	if !l.enabled {
		return nil
	}

	if err := l.open(url); err != nil {
		l.logger.Warn("failed to open browser", "url", url, "error", err)
		return fmt.Errorf("open browser: %w", err)
	}
	l.logger.Debug("opened browser", "url", url)
	return nil
}
