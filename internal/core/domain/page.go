package domain

import (
	"path/filepath"
)

// =============================================================================
// Access Type
// =============================================================================

// AccessType is the visibility of a hosted page.
type AccessType string

const (
	AccessPublic  AccessType = "public"
	AccessPrivate AccessType = "private"
)

// AccessTypeFor maps the listed flag to an access type.
func AccessTypeFor(listed bool) AccessType {
	if listed {
		return AccessPublic
	}
	return AccessPrivate
}

// =============================================================================
// Project Info
// =============================================================================

// ProjectInfo is a hosted page as reported by the remote service.
type ProjectInfo struct {
	ID             string     `json:"id"`
	FullProjectURL string     `json:"fullProjectUrl"`
	ProjectDomain  string     `json:"projectDomain"`
	ProjectName    string     `json:"projectName"`
	AccessType     AccessType `json:"accessType"`
	WithThreads    bool       `json:"withThreads"`
	Email          string     `json:"email,omitempty"`
	OwnedByMe      bool       `json:"ownedByMe"`
	StarredCount   int        `json:"starredCount"`
	StarredByMe    bool       `json:"starredByMe"`
	Description    string     `json:"description,omitempty"`
	Image          string     `json:"image,omitempty"`
	Teams          []string   `json:"teams,omitempty"`
}

// =============================================================================
// Deployment Record
// =============================================================================

// DeploymentRecord summarizes the last successful publish. It is what makes
// the next run an update instead of a create.
type DeploymentRecord struct {
	ProjectLocation string     `json:"projectLocation"`
	ProjectName     string     `json:"projectName"`
	ProjectDomain   string     `json:"projectDomain"`
	AccessType      AccessType `json:"accessType"`
	WithThreads     bool       `json:"withThreads"`
}

// Listed reports whether the recorded page is publicly listed.
func (r DeploymentRecord) Listed() bool {
	return r.AccessType == AccessPublic
}

// NewDeploymentRecord builds the record for a published page. The artifact
// location is stored relative to the project root with forward slashes.
func NewDeploymentRecord(info ProjectInfo, projectRoot, deployPath string) DeploymentRecord {
	location := deployPath
	if rel, err := filepath.Rel(projectRoot, deployPath); err == nil {
		location = rel
	}
	return DeploymentRecord{
		ProjectLocation: filepath.ToSlash(location),
		ProjectName:     info.ProjectName,
		ProjectDomain:   info.ProjectDomain,
		AccessType:      info.AccessType,
		WithThreads:     info.WithThreads,
	}
}

// PageURL returns the public URL of a page domain.
func PageURL(projectDomain string) string {
	return "https://" + projectDomain
}

// =============================================================================
// Authorization
// =============================================================================

// ActionToken identifies a pending user authorization on the remote service.
// A token belongs to one publish attempt and is never reused.
type ActionToken string

// Credential is the bearer credential granted once the user confirms the
// action. It is kept in memory for a single publish only.
type Credential string
