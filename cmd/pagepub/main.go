package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/artpar/pagepub/internal/core/domain"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitPackagingError = 2
	ExitRemoteError    = 3
	ExitTimeout        = 4
	ExitCancelled      = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	projectRoot := flag.String("project", "", "Project root (overrides project.root)")
	slug := flag.String("slug", "", "Page name for a first publish (default: derived from the project name)")
	listedFlag := flag.String("listed", "", "Publicly list the page: true or false (default: keep the current setting)")
	openPage := flag.Bool("open", false, "Open the published page when done")
	manage := flag.Bool("manage", false, "Open the page management site and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pagepub %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	listed, err := parseOptionalBool(*listedFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -listed: %v\n", err)
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if *projectRoot != "" {
		cfg.Project.Root = *projectRoot
	}

	logger := SetupLogger(cfg, os.Stderr)
	logger.Debug("starting pagepub",
		"version", Version,
		"config", *configPath,
		"project_root", cfg.Project.Root,
	)

	app, err := NewApp(cfg, nil, os.Stderr, os.Stderr, logger)
	if err != nil {
		return reportError(err)
	}

	if *manage {
		if err := app.Orchestrator().OpenManage(); err != nil {
			logger.Warn("could not open browser", "error", err)
		}
		return ExitSuccess
	}

	// The first interrupt cancels the confirmation wait; a second one
	// aborts whatever is in flight.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		interrupts := 0
		for {
			select {
			case <-signals:
				interrupts++
				if interrupts == 1 {
					fmt.Fprintln(os.Stderr, "Cancelling, press Ctrl+C again to abort")
					app.Orchestrator().Cancel()
					continue
				}
				stop()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	info, err := app.Publish(ctx, PublishRequest{Slug: *slug, Listed: listed})
	if info != nil {
		fmt.Println(domain.PageURL(info.ProjectDomain))
	}
	if err != nil {
		return reportError(err)
	}

	if *openPage {
		if err := app.Orchestrator().OpenPage(); err != nil {
			logger.Warn("could not open browser", "error", err)
		}
	}
	return ExitSuccess
}

// parseOptionalBool parses a boolean flag value where "" means unset.
func parseOptionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// reportError prints err and returns its exit code.
func reportError(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}
	return ExitConfigError
}
