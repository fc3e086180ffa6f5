// Package hub publishes normalized batches as dataset splits on a Hugging
// Face compatible hub.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"mevzuat/internal/logger"
)

// Hub errors.
var (
	ErrMissingToken         = errors.New("hub token is required")
	ErrInvalidRepoID        = errors.New("repo id must look like namespace/name")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrNoData               = errors.New("no data in response")
)

// Client defines the hub operations the uploader needs.
type Client interface {
	CreateRepo(ctx context.Context, repoID string, private bool) error
	Commit(ctx context.Context, repoID string, commit Commit) (*CommitResponse, error)
	RepoInfo(ctx context.Context, repoID string) (*RepoInfo, error)
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// Commit is a set of files written to the main branch in one revision.
type Commit struct {
	Summary     string
	Description string
	Files       []CommitFile
}

// CommitFile is one file added or replaced by a commit.
type CommitFile struct {
	Path    string
	Content []byte
}

// CommitResponse is returned by the commit endpoint.
type CommitResponse struct {
	CommitURL string `json:"commitUrl"`
	CommitOID string `json:"commitOid"`
}

// RepoInfo is the subset of dataset metadata the uploader reports.
type RepoInfo struct {
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	ID           string    `json:"id"`
	SHA          string    `json:"sha,omitempty"`
	Tags         []string  `json:"tags"`
	Downloads    int       `json:"downloads"`
	Likes        int       `json:"likes"`
	Private      bool      `json:"private"`
}

// HTTPClient talks to the hub REST API.
type HTTPClient struct {
	http   *resty.Client
	logger *logger.Logger
}

// NewHTTPClient creates a hub client. An empty token is a hard failure.
func NewHTTPClient(endpoint, token string, timeout time.Duration, log *logger.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	if log == nil {
		log = logger.Discard()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(endpoint, "/"))
	httpClient.SetAuthToken(token)
	httpClient.SetHeader("User-Agent", "mevzuat-uploader")

	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &HTTPClient{http: httpClient, logger: log.With("component", "hub")}, nil
}

// SplitRepoID splits "namespace/name" into its parts.
func SplitRepoID(repoID string) (namespace, name string, err error) {
	namespace, name, ok := strings.Cut(strings.TrimSpace(repoID), "/")
	if !ok || namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoID, repoID)
	}

	return namespace, name, nil
}

// CreateRepo creates the dataset repository. An existing repository is not an error.
func (c *HTTPClient) CreateRepo(ctx context.Context, repoID string, private bool) error {
	namespace, name, err := SplitRepoID(repoID)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"type":         "dataset",
			"name":         name,
			"organization": namespace,
			"private":      private,
		}).
		Post("/api/repos/create")
	if err != nil {
		return fmt.Errorf("create repo request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusConflict:
		c.logger.Debug("dataset repository already exists", "repo_id", repoID)
		return nil
	case resp.IsError():
		return statusError("create repo", resp)
	}

	c.logger.Info("dataset repository created", "repo_id", repoID, "private", private)

	return nil
}

// Commit writes the files to the main branch as NDJSON operations.
func (c *HTTPClient) Commit(ctx context.Context, repoID string, commit Commit) (*CommitResponse, error) {
	if _, _, err := SplitRepoID(repoID); err != nil {
		return nil, err
	}

	body, err := encodeCommit(commit)
	if err != nil {
		return nil, err
	}

	var out CommitResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(body).
		SetResult(&out).
		Post("/api/datasets/" + escapeRepoID(repoID) + "/commit/main")
	if err != nil {
		return nil, fmt.Errorf("commit request failed: %w", err)
	}

	if resp.IsError() {
		return nil, statusError("commit", resp)
	}

	c.logger.Info("commit created", "repo_id", repoID, "files", len(commit.Files), "commit", out.CommitOID)

	return &out, nil
}

// RepoInfo fetches dataset metadata.
func (c *HTTPClient) RepoInfo(ctx context.Context, repoID string) (*RepoInfo, error) {
	if _, _, err := SplitRepoID(repoID); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/datasets/" + escapeRepoID(repoID))
	if err != nil {
		return nil, fmt.Errorf("repo info request failed: %w", err)
	}

	if resp.IsError() {
		return nil, statusError("repo info", resp)
	}

	info, err := unmarshalData[RepoInfo](resp.Body())
	if err != nil {
		return nil, err
	}

	if info.ID == "" {
		info.ID = repoID
	}

	return info, nil
}

type commitLine struct {
	Value any    `json:"value"`
	Key   string `json:"key"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitOperation struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

func encodeCommit(commit Commit) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)

	if err := enc.Encode(commitLine{Key: "header", Value: commitHeader{Summary: commit.Summary, Description: commit.Description}}); err != nil {
		return nil, fmt.Errorf("failed to encode commit header: %w", err)
	}

	for _, f := range commit.Files {
		op := commitOperation{
			Content:  base64.StdEncoding.EncodeToString(f.Content),
			Path:     f.Path,
			Encoding: "base64",
		}

		if err := enc.Encode(commitLine{Key: "file", Value: op}); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.Path, err)
		}
	}

	return buf.Bytes(), nil
}

func escapeRepoID(repoID string) string {
	namespace, name, _ := strings.Cut(repoID, "/")
	return url.PathEscape(namespace) + "/" + url.PathEscape(name)
}

func statusError(op string, resp *resty.Response) error {
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 512 {
		body = body[:512] + "..."
	}

	return fmt.Errorf("%s: %w: %d: %s", op, ErrUnexpectedStatusCode, resp.StatusCode(), body)
}

// unmarshalData unmarshals a JSON body into the target type.
func unmarshalData[T any](data []byte) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoData
	}

	var target T
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("failed to parse response data: %w", err)
	}

	return &target, nil
}
