package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/artpar/pagepub/internal/core/domain"
	"github.com/artpar/pagepub/internal/shell/auth"
	"github.com/artpar/pagepub/internal/shell/browser"
	"github.com/artpar/pagepub/internal/shell/deployconfig"
	"github.com/artpar/pagepub/internal/shell/packaging"
	"github.com/artpar/pagepub/internal/shell/pages"
	"github.com/artpar/pagepub/internal/shell/project"
	"github.com/artpar/pagepub/internal/shell/publish"
)

// =============================================================================
// Application
// =============================================================================

// App wires the publish workflow for one project.
type App struct {
	cfg          *Config
	settings     *project.Settings
	orchestrator *publish.Orchestrator
	progressOut  io.Writer
	logger       *slog.Logger
}

// AppError carries the exit code for a failed step.
type AppError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApp loads the project settings and builds the orchestrator. clock
// may be nil to use wall-clock polling.
func NewApp(cfg *Config, clock auth.Clock, progressOut, browserOut io.Writer, logger *slog.Logger) (*App, error) {
	settings, err := project.Load(cfg.Project.Root, cfg.Project.SettingsFile)
	if err != nil {
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	userAgent := domain.UserAgent(cfg.Client.Name, settings.Version)
	logger = logger.With("project", settings.Name)

	packager, err := packaging.NewCommandPackager(packaging.Config{
		Command:      cfg.Packaging.Command,
		Dir:          settings.Root,
		ArtifactPath: settings.ArtifactPath(),
		Timeout:      cfg.Packaging.Timeout,
	}, logger)
	if err != nil {
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	tokens := auth.NewClient(auth.Config{
		BaseURL:          cfg.API.URL,
		UserAgent:        userAgent,
		PollInterval:     cfg.Auth.PollInterval,
		TimeoutIntervals: cfg.Auth.TimeoutIntervals,
		Timeout:          cfg.API.Timeout,
		Clock:            clock,
	}, logger)

	pagesCfg := pages.Config{
		BaseURL:   cfg.Pages.URL,
		UserAgent: userAgent,
		Timeout:   cfg.Pages.Timeout,
	}

	orch := publish.NewOrchestrator(publish.Config{
		DisplayName:   settings.Name,
		ProjectRoot:   settings.Root,
		AccountURL:    cfg.Account.URL,
		ManageURL:     cfg.Pages.ManageURL,
		DefaultListed: cfg.Publish.Listed,
	}, publish.Deps{
		Packager: packager,
		Tokens:   tokens,
		Browser:  browser.NewLauncher(browser.Config{Enabled: cfg.Browser.Enabled, Out: browserOut}, logger),
		Pages: func(credential domain.Credential) publish.PageService {
			return pages.NewClient(pagesCfg, credential, logger)
		},
		Records: deployconfig.NewStore(settings.Root, cfg.Project.RecordFile, logger),
	}, logger)

	if err := orch.Load(); err != nil {
		return nil, &AppError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	return &App{
		cfg:          cfg,
		settings:     settings,
		orchestrator: orch,
		progressOut:  progressOut,
		logger:       logger,
	}, nil
}

// Orchestrator returns the underlying orchestrator.
func (a *App) Orchestrator() *publish.Orchestrator {
	return a.orchestrator
}

// PublishRequest holds the per-run choices from the command line.
type PublishRequest struct {
	// Slug replaces the derived slug when no page is known yet.
	Slug string

	// Listed, when set, overrides both the configured default and the
	// access type of the known page.
	Listed *bool
}

// Publish resolves the slug and publish options and runs one publish.
func (a *App) Publish(ctx context.Context, req PublishRequest) (*domain.ProjectInfo, error) {
	snap := a.orchestrator.Snapshot()

	slug, err := a.orchestrator.ResolveSlug(a.settings.Name)
	if req.Slug != "" && snap.ProjectName == "" {
		slug, err = domain.NormalizeSlug(req.Slug)
	}
	if err != nil {
		return nil, &AppError{Op: "Publish", Err: err, ExitCode: ExitConfigError}
	}

	listed := a.cfg.Publish.Listed
	switch {
	case req.Listed != nil:
		listed = *req.Listed
	case snap.ProjectName != "":
		listed = snap.Listed
	}
	opts := domain.Options{
		Listed:     listed,
		UseThreads: domain.ResolveUseThreads(a.cfg.Publish.ThreadsMode(), a.settings.Editor.ServerCOEP),
	}

	stop := a.showProgress()
	info, err := a.orchestrator.Publish(ctx, slug, opts)
	stop()

	if err != nil {
		return info, &AppError{Op: "Publish", Err: err, ExitCode: exitCodeFor(err)}
	}
	return info, nil
}

// showProgress renders a spinner labelled with the publish state until
// the returned function is called.
func (a *App) showProgress() func() {
	if a.progressOut == nil {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(a.progressOut),
		progressbar.OptionSetDescription(describeState(publish.Snapshot{State: domain.StateConfirming})),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Describe(describeState(a.orchestrator.Snapshot()))
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}

func describeState(snap publish.Snapshot) string {
	switch {
	case snap.State == domain.StateConfirming && snap.ActionToken == "":
		return "Packaging"
	case snap.State == domain.StateConfirming:
		return "Waiting for confirmation in the browser"
	case snap.State == domain.StateUploading:
		return "Uploading"
	default:
		return "Publishing"
	}
}

// exitCodeFor maps publish errors to exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, domain.ErrTimeout):
		return ExitTimeout
	case errors.Is(err, domain.ErrPackaging):
		return ExitPackagingError
	case errors.Is(err, domain.ErrConfigCorrupt), errors.Is(err, domain.ErrInvalidSlug):
		return ExitConfigError
	default:
		return ExitRemoteError
	}
}
