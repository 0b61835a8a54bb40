// Package pages provides a client for the hosted pages API: looking up,
// creating and updating a published page.
package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/pagepub/internal/core/domain"
)

// Client talks to the pages service on behalf of one authorized user.
type Client struct {
	baseURL    string
	userAgent  string
	credential domain.Credential
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds pages client configuration.
type Config struct {
	BaseURL   string // Pages service base URL, e.g., "https://cloud.wonderland.dev"
	UserAgent string
	Timeout   time.Duration // Covers the whole upload, so keep it generous
}

// NewClient creates a pages client that authenticates with credential.
func NewClient(cfg Config, credential domain.Credential, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		credential: credential,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "pages"),
	}
}

// =============================================================================
// Page Operations
// =============================================================================

// Get looks up a page by project name. It returns nil, nil when the page
// does not exist.
func (c *Client) Get(ctx context.Context, name string) (*domain.ProjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NetworkError("get page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // Not found
	}
	return decodeProjectInfo("get page", resp)
}

// Create uploads the artifact as a new page named slug.
func (c *Client) Create(ctx context.Context, artifactPath, slug string, listed, useThreads bool) (*domain.ProjectInfo, error) {
	c.logger.Info("creating page", "project_name", slug, "listed", listed, "with_threads", useThreads)
	return c.upload(ctx, "create page", http.MethodPost, c.baseURL+"/api/pages", artifactPath, slug, listed, useThreads)
}

// Update replaces the content and settings of the existing page name.
func (c *Client) Update(ctx context.Context, artifactPath, name string, listed, useThreads bool) (*domain.ProjectInfo, error) {
	c.logger.Info("updating page", "project_name", name, "listed", listed, "with_threads", useThreads)
	return c.upload(ctx, "update page", http.MethodPut, c.pageURL(name), artifactPath, name, listed, useThreads)
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) upload(ctx context.Context, op, method, endpoint, artifactPath, name string, listed, useThreads bool) (*domain.ProjectInfo, error) {
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, fmt.Errorf("%s: artifact: %w", op, err)
	}

	// The body is streamed so large artifacts are never held in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadBody(mw, artifactPath, name, listed, useThreads))
	}()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A failure while writing the body surfaces here through the pipe.
		return nil, domain.NetworkError(op, err)
	}
	defer resp.Body.Close()

	return decodeProjectInfo(op, resp)
}

// writeUploadBody writes the form fields and the zipped artifact, then
// closes the multipart writer.
func writeUploadBody(mw *multipart.Writer, artifactPath, name string, listed, useThreads bool) error {
	fields := []struct{ key, value string }{
		{"projectName", name},
		{"isPublic", strconv.FormatBool(listed)},
		{"withThreads", strconv.FormatBool(useThreads)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return fmt.Errorf("write field %s: %w", f.key, err)
		}
	}

	part, err := mw.CreateFormFile("deployment", name+".zip")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if err := writeArtifact(part, artifactPath); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}
	return nil
}

func decodeProjectInfo(op string, resp *http.Response) (*domain.ProjectInfo, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.NewServiceError(op, resp.StatusCode, string(body))
	}

	var info domain.ProjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, domain.NewServiceError(op, resp.StatusCode, "decode response: "+err.Error())
	}
	if info.ProjectName == "" || info.ProjectDomain == "" {
		return nil, domain.NewServiceError(op, resp.StatusCode, "response is missing projectName or projectDomain")
	}
	return &info, nil
}

func (c *Client) pageURL(name string) string {
	return c.baseURL + "/api/pages/" + url.PathEscape(name)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+string(c.credential))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
