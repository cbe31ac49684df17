package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"sheetboard/errs"
)

const defaultBaseURL = "https://api.github.com"

// GitHubClient talks to the GitHub contents API. The file blob is the remote
// content and its SHA is the version token.
type GitHubClient struct {
	// BaseURL is overridable for tests; defaults to the public API.
	BaseURL string

	owner  string
	repo   string
	branch string
	path   string
	token  string // Bearer credential; empty is allowed (public reads may succeed)
	http   *http.Client
}

// NewGitHubClient builds a client for one file in one repository. All calls
// carry the given bounded timeout so a dead network surfaces as an error
// rather than a hang.
func NewGitHubClient(owner, repo, branch, path, token string, timeout time.Duration) *GitHubClient {
	return &GitHubClient{
		BaseURL: defaultBaseURL,
		owner:   owner,
		repo:    repo,
		branch:  branch,
		path:    path,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *GitHubClient) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.BaseURL, c.owner, c.repo, c.path)
}

func (c *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Fetch downloads the remote file and returns its bytes and SHA.
func (c *GitHubClient) Fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL()+"?ref="+c.branch, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		log.Printf("WARN: Remote fetch failed with status %d: %v", resp.StatusCode, err)
		return nil, "", err
	}

	sha := gjson.GetBytes(body, "sha").String()
	if sha == "" {
		return nil, "", fmt.Errorf("%w: response missing sha", errs.ErrNetworkError)
	}

	encoded := gjson.GetBytes(body, "content").String()
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("%w: undecodable content: %v", errs.ErrNetworkError, err)
	}

	log.Printf("INFO: Fetched remote %s/%s:%s (%d bytes, version %.10s)", c.owner, c.repo, c.path, len(content), sha)
	return content, sha, nil
}

// Put overwrites the remote file. GitHub rejects a stale SHA with a conflict
// status, which maps to errs.ErrConflict; callers must re-fetch and re-apply
// rather than retry blindly.
func (c *GitHubClient) Put(ctx context.Context, content []byte, token, message string) (string, error) {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"sha":     token,
		"branch":  c.branch,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrNetworkError, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		log.Printf("WARN: Remote put failed with status %d: %v", resp.StatusCode, err)
		return "", err
	}

	newSHA := gjson.GetBytes(body, "content.sha").String()
	if newSHA == "" {
		return "", fmt.Errorf("%w: response missing content.sha", errs.ErrNetworkError)
	}

	log.Printf("INFO: Pushed remote %s/%s:%s (version %.10s)", c.owner, c.repo, c.path, newSHA)
	return newSHA, nil
}

// statusError maps a contents-API status to the error taxonomy. GitHub
// reports a stale SHA as 409, and in some flows as a 422 validation error.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return errs.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.ErrAuthError
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", errs.ErrConflict, gjson.GetBytes(body, "message").String())
	default:
		return fmt.Errorf("%w: unexpected status %d", errs.ErrNetworkError, status)
	}
}
