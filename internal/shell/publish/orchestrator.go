// Package publish coordinates a publish to the hosted pages service:
// packaging, browser-confirmed authorization, upload and persistence of
// the resulting deployment record.
//
// This is part of the Imperative Shell: the state machine rules live in
// internal/core/domain, the I/O lives behind the interfaces below.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/artpar/pagepub/internal/core/domain"
	"github.com/artpar/pagepub/internal/shell/auth"
)

// =============================================================================
// Collaborators
// =============================================================================

// Packager builds the deployable artifact and returns its path.
type Packager interface {
	Package(ctx context.Context) (string, error)
}

// TokenClient runs the action token authorization flow.
type TokenClient interface {
	CreateToken(ctx context.Context, displayName string) (domain.ActionToken, error)
	PollUntilResolved(ctx context.Context, token domain.ActionToken, cancel auth.Canceller) (domain.Credential, error)
}

// Browser opens URLs, best effort.
type Browser interface {
	Open(url string) error
}

// PageService manages hosted pages for one authorized user. Get returns
// nil, nil when the page does not exist.
type PageService interface {
	Get(ctx context.Context, name string) (*domain.ProjectInfo, error)
	Create(ctx context.Context, artifactPath, slug string, listed, useThreads bool) (*domain.ProjectInfo, error)
	Update(ctx context.Context, artifactPath, name string, listed, useThreads bool) (*domain.ProjectInfo, error)
}

// PageServiceFactory binds a page service to a freshly granted credential.
type PageServiceFactory func(credential domain.Credential) PageService

// RecordStore persists the deployment record.
type RecordStore interface {
	Load() (*domain.DeploymentRecord, error)
	Save(record domain.DeploymentRecord) error
}

// Deps are the collaborators of an Orchestrator. All are required.
type Deps struct {
	Packager Packager
	Tokens   TokenClient
	Browser  Browser
	Pages    PageServiceFactory
	Records  RecordStore
}

// Config holds orchestrator configuration.
type Config struct {
	// DisplayName is the human project name shown on the confirmation page.
	DisplayName string

	// ProjectRoot anchors the artifact location stored in the record.
	ProjectRoot string

	// AccountURL is the confirmation page; the action id is appended as a query.
	AccountURL string

	// ManageURL is where published pages are managed.
	ManageURL string

	// DefaultListed is the listed choice before anything was published.
	DefaultListed bool
}

// =============================================================================
// Orchestrator
// =============================================================================

// Snapshot is a consistent copy of the orchestrator state for display.
type Snapshot struct {
	State         domain.PublishState
	ProjectName   string
	ProjectDomain string
	Listed        bool
	ActionToken   domain.ActionToken
	AttemptID     string
	LastError     string
}

// Orchestrator runs the publish state machine. Publish blocks on the
// caller's goroutine; Snapshot and Cancel are safe to call concurrently.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	cancel auth.CancelFlag

	mu            sync.Mutex
	state         domain.PublishState
	projectName   string
	projectDomain string
	listed        bool
	actionToken   domain.ActionToken
	attemptID     string
	lastError     string
}

// NewOrchestrator creates an idle orchestrator. Call Load to pick up a
// previous deployment.
func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "publish"),
		state:  domain.StateIdle,
		listed: cfg.DefaultListed,
	}
}

// Load resets the orchestrator and restores the last deployment from the
// record store. A corrupt record is reported, not treated as absent.
func (o *Orchestrator) Load() error {
	record, err := o.deps.Records.Load()

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.CanStartPublish() {
		return domain.ErrBusy
	}

	o.state = domain.StateIdle
	o.projectName = ""
	o.projectDomain = ""
	o.listed = o.cfg.DefaultListed
	o.actionToken = ""
	o.lastError = ""

	if err != nil {
		o.lastError = err.Error()
		return fmt.Errorf("load deployment record: %w", err)
	}
	if record == nil {
		return nil
	}

	o.listed = record.Listed()
	o.projectName = record.ProjectName
	o.projectDomain = record.ProjectDomain
	if o.projectName != "" {
		o.state = domain.StatePublished
	}

	o.logger.Info("loaded deployment", "project_name", o.projectName, "project_domain", o.projectDomain)
	return nil
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Snapshot{
		State:         o.state,
		ProjectName:   o.projectName,
		ProjectDomain: o.projectDomain,
		Listed:        o.listed,
		ActionToken:   o.actionToken,
		AttemptID:     o.attemptID,
		LastError:     o.lastError,
	}
}

// Cancel asks a running publish to stop. It takes effect at the next poll
// tick or before the upload starts; once uploading it has no effect.
func (o *Orchestrator) Cancel() {
	o.cancel.Cancel()
	o.logger.Info("cancellation requested")
}

// ResolveSlug returns the slug to publish under: the name of the known
// page if there is one, else the normalized display name.
func (o *Orchestrator) ResolveSlug(displayName string) (string, error) {
	o.mu.Lock()
	name := o.projectName
	o.mu.Unlock()

	if name != "" {
		return name, nil
	}
	return domain.NormalizeSlug(displayName)
}

// OpenPage opens the published page.
func (o *Orchestrator) OpenPage() error {
	o.mu.Lock()
	projectDomain := o.projectDomain
	o.mu.Unlock()

	if projectDomain == "" {
		return errors.New("nothing has been published yet")
	}
	return o.deps.Browser.Open(domain.PageURL(projectDomain))
}

// OpenManage opens the page management site.
func (o *Orchestrator) OpenManage() error {
	return o.deps.Browser.Open(o.cfg.ManageURL)
}

// =============================================================================
// Publish
// =============================================================================

// Publish packages the project, waits for the user to authorize the
// upload in the browser, then updates the known page or creates a new one
// named slug, and persists the result.
//
// On failure the state returns to published when a page is already known
// and to idle otherwise; the error message is kept in the snapshot. If
// only saving the record fails, the page info is returned together with
// the error and the state is published.
func (o *Orchestrator) Publish(ctx context.Context, slug string, opts domain.Options) (*domain.ProjectInfo, error) {
	if slug == "" {
		return nil, domain.ErrInvalidSlug
	}

	o.mu.Lock()
	if !o.state.CanStartPublish() {
		o.mu.Unlock()
		return nil, domain.ErrBusy
	}
	attemptID := uuid.NewString()
	logger := o.logger.With("attempt_id", attemptID, "slug", slug)
	if err := o.transitionLocked(logger, domain.StateConfirming); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.cancel.Reset()
	o.attemptID = attemptID
	o.actionToken = ""
	o.lastError = ""
	knownName := o.projectName
	o.mu.Unlock()

	logger.Info("publish started", "known_project", knownName, "listed", opts.Listed, "with_threads", opts.UseThreads)

	info, artifact, err := o.run(ctx, logger, slug, knownName, opts)
	if err != nil {
		o.fail(logger, err)
		return nil, err
	}

	o.mu.Lock()
	completeErr := o.completeLocked(logger, info)
	o.mu.Unlock()

	record := domain.NewDeploymentRecord(*info, o.cfg.ProjectRoot, artifact)
	if err := o.deps.Records.Save(record); err != nil {
		err = fmt.Errorf("save deployment record: %w", err)
		o.mu.Lock()
		o.lastError = err.Error()
		o.mu.Unlock()
		logger.Error("page published but record not saved", "error", err)
		return info, err
	}

	if completeErr != nil {
		return info, completeErr
	}

	logger.Info("publish finished",
		"project_name", info.ProjectName,
		"project_domain", info.ProjectDomain,
	)
	return info, nil
}

// run performs the steps up to and including the upload.
func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, slug, knownName string, opts domain.Options) (*domain.ProjectInfo, string, error) {
	artifact, err := o.deps.Packager.Package(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrPackaging) {
			err = fmt.Errorf("%w: %w", domain.ErrPackaging, err)
		}
		return nil, "", err
	}
	if o.cancel.Cancelled() {
		return nil, "", domain.ErrCancelled
	}

	token, err := o.deps.Tokens.CreateToken(ctx, o.cfg.DisplayName)
	if err != nil {
		return nil, "", fmt.Errorf("request authorization: %w", err)
	}
	o.mu.Lock()
	o.actionToken = token
	o.mu.Unlock()

	if err := o.deps.Browser.Open(auth.AuthorizeURL(o.cfg.AccountURL, token)); err != nil {
		logger.Warn("could not open browser, continuing", "error", err)
	}

	credential, err := o.deps.Tokens.PollUntilResolved(ctx, token, &o.cancel)
	if err != nil {
		return nil, "", err
	}
	// A cancel that raced the final poll still wins before the upload.
	if o.cancel.Cancelled() {
		return nil, "", domain.ErrCancelled
	}

	o.mu.Lock()
	err = o.transitionLocked(logger, domain.StateUploading)
	o.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	info, err := o.upload(ctx, logger, o.deps.Pages(credential), artifact, slug, knownName, opts)
	if err != nil {
		return nil, "", err
	}
	return info, artifact, nil
}

// upload updates the known page if it still exists remotely and creates
// a page otherwise. A remembered name whose page was deleted falls
// through to create.
func (o *Orchestrator) upload(ctx context.Context, logger *slog.Logger, pages PageService, artifact, slug, knownName string, opts domain.Options) (*domain.ProjectInfo, error) {
	if knownName != "" {
		page, err := pages.Get(ctx, knownName)
		if err != nil {
			return nil, fmt.Errorf("look up page %s: %w", knownName, err)
		}
		if page != nil {
			info, err := pages.Update(ctx, artifact, knownName, opts.Listed, opts.UseThreads)
			if err != nil {
				return nil, fmt.Errorf("update page %s: %w", knownName, err)
			}
			return info, nil
		}
		logger.Info("known page no longer exists, creating a new one", "project_name", knownName)
	}

	info, err := pages.Create(ctx, artifact, slug, opts.Listed, opts.UseThreads)
	if err != nil {
		return nil, fmt.Errorf("create page %s: %w", slug, err)
	}
	return info, nil
}

// completeLocked adopts the uploaded page. The page exists remotely even
// when the move to published is rejected, so the state is published either
// way and the rejection is reported. o.mu must be held.
func (o *Orchestrator) completeLocked(logger *slog.Logger, info *domain.ProjectInfo) error {
	o.projectName = info.ProjectName
	o.projectDomain = info.ProjectDomain
	o.listed = info.AccessType == domain.AccessPublic

	if err := o.transitionLocked(logger, domain.StatePublished); err != nil {
		o.state = domain.StatePublished
		o.lastError = err.Error()
		return err
	}
	return nil
}

// fail records err and returns to the stable state.
func (o *Orchestrator) fail(logger *slog.Logger, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lastError = err.Error()
	target := domain.StateIdle
	if o.projectName != "" {
		target = domain.StatePublished
	}
	if tErr := o.transitionLocked(logger, target); tErr != nil {
		o.state = target
	}

	switch {
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrTimeout):
		logger.Info("publish aborted", "reason", err)
	default:
		logger.Error("publish failed", "error", err)
	}
}

// transitionLocked moves to state to. o.mu must be held.
func (o *Orchestrator) transitionLocked(logger *slog.Logger, to domain.PublishState) error {
	if err := domain.ValidateTransition(o.state, to); err != nil {
		logger.Error("rejected state transition", "from", o.state, "to", to)
		return fmt.Errorf("%w: %s -> %s", err, o.state, to)
	}
	logger.Debug("state transition", "from", o.state, "to", to)
	o.state = to
	return nil
}
