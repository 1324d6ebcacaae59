package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/repogate/repogate/provision"
)

/* Client implements the provisioning ports against the GitHub REST API.
 * It is the only place that knows GitHub's wire format; the provision
 * package only sees the UserSearcher and CollaboratorInviter interfaces.
 */

const (
	defaultBaseURL = "https://api.github.com"
	acceptHeader   = "application/vnd.github+json"
	apiVersion     = "2022-11-28"

	defaultTimeout = 10 * time.Second
)

type Client struct {
	baseURL string
	token   string
	owner   string
	repo    string
	client  *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL (GitHub Enterprise, tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a GitHub API client for one fixed owner/repo
func NewClient(token, owner, repo string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		owner:   owner,
		repo:    repo,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse is the subset of the user search response we consume
type searchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Login string `json:"login"`
	} `json:"items"`
}

// errorResponse is GitHub's error body shape
type errorResponse struct {
	Message string `json:"message"`
}

// SearchByEmail looks up a GitHub login by email via the user search API.
// The first hit wins: the search endpoint returns results by relevance and
// this is an acknowledged best-effort fallback, not an exact match.
func (c *Client) SearchByEmail(ctx context.Context, email string) (string, bool, error) {
	query := url.Values{}
	query.Set("q", email+" in:email")
	searchURL := fmt.Sprintf("%s/search/users?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating search request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("searching users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, apiError(resp)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("decoding search response: %w", err)
	}

	if result.TotalCount == 0 || len(result.Items) == 0 {
		return "", false, nil
	}

	return result.Items[0].Login, true, nil
}

// Invite adds a username as a collaborator on the configured repository
// with pull (read-only) permission. GitHub answers 201 for a new
// invitation and 204 when the user is already a collaborator or has a
// pending invitation; both count as success.
func (c *Client) Invite(ctx context.Context, username string) error {
	inviteURL := fmt.Sprintf("%s/repos/%s/%s/collaborators/%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(username))

	body, err := json.Marshal(map[string]string{"permission": "pull"})
	if err != nil {
		return fmt.Errorf("marshaling invite body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, inviteURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating invite request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("inviting collaborator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

// apiError extracts GitHub's human-readable message from an error
// response, falling back to the status code.
func apiError(resp *http.Response) *provision.ProviderError {
	provErr := &provision.ProviderError{StatusCode: resp.StatusCode}

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		provErr.Message = body.Message
	}

	return provErr
}
