// Package azdo provides a minimal Azure DevOps REST client for the
// entities the tracker needs: projects, repositories, pipelines, and raw
// file content. Failures are classified into not-found, transient
// (retried with exponential backoff), and fatal access errors.
package azdo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	apiVersion = "7.2-preview.1"

	maxAttempts  = 3
	retryBaseLag = 500 * time.Millisecond

	// detailFanout bounds concurrent per-pipeline detail lookups when
	// expanding a pipeline listing.
	detailFanout = 10
)

// retryStatus lists the HTTP status codes treated as transient.
var retryStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client talks to Azure DevOps at the organization level.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the given organization using a bearer
// token (PAT or derived access token).
func NewClient(organization, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: "https://dev.azure.com/" + url.PathEscape(organization),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// get performs a GET with retry on transient failures and decodes the
// JSON response into out.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out any) error {
	body, err := c.getRaw(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// getRaw performs a GET with retry and returns the raw response body.
func (c *Client) getRaw(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-version", apiVersion)
	full := rawURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			lag := retryBaseLag << (attempt - 1)
			c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt+1, "backoff", lag)
			select {
			case <-time.After(lag):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.doOnce(ctx, full)
		if err == nil {
			return body, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, full string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{URL: full, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		// Azure DevOps answers 203 with an HTML sign-in page when the
		// token is rejected.
		resp.StatusCode == http.StatusNonAuthoritativeInfo:
		return nil, &AccessError{Status: resp.StatusCode, URL: full}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", full, ErrNotFound)
	case retryStatus[resp.StatusCode]:
		return nil, &TransientError{Status: resp.StatusCode, URL: full}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, full)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{URL: full, Err: err}
	}
	return body, nil
}

// ListProjects lists all projects in the organization.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var env listEnvelope[Project]
	if err := c.get(ctx, c.baseURL+"/_apis/projects", nil, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// GetProject gets a single project by name or id.
func (c *Client) GetProject(ctx context.Context, project string) (Project, error) {
	var p Project
	err := c.get(ctx, c.baseURL+"/_apis/projects/"+url.PathEscape(project), nil, &p)
	return p, err
}

// ListRepositories lists the git repositories of a project.
func (c *Client) ListRepositories(ctx context.Context, project string) ([]Repository, error) {
	type rawRepo struct {
		Repository
		Project Project `json:"project"`
	}
	var env listEnvelope[rawRepo]
	url_ := c.baseURL + "/" + url.PathEscape(project) + "/_apis/git/repositories"
	if err := c.get(ctx, url_, nil, &env); err != nil {
		return nil, err
	}
	repos := make([]Repository, 0, len(env.Value))
	for _, r := range env.Value {
		repo := r.Repository
		repo.ProjectID = r.Project.ID
		repo.ProjectName = r.Project.Name
		repo.DefaultBranch = shortBranch(repo.DefaultBranch)
		repos = append(repos, repo)
	}
	return repos, nil
}

// GetRepository gets a single repository by name or id.
func (c *Client) GetRepository(ctx context.Context, project, repository string) (Repository, error) {
	type rawRepo struct {
		Repository
		Project Project `json:"project"`
	}
	var r rawRepo
	url_ := c.baseURL + "/" + url.PathEscape(project) + "/_apis/git/repositories/" + url.PathEscape(repository)
	if err := c.get(ctx, url_, nil, &r); err != nil {
		return Repository{}, err
	}
	repo := r.Repository
	repo.ProjectID = r.Project.ID
	repo.ProjectName = r.Project.Name
	repo.DefaultBranch = shortBranch(repo.DefaultBranch)
	return repo, nil
}

// ListPipelines lists all pipelines in a project with their full
// configuration. The listing endpoint only returns summaries, so each
// pipeline is expanded with a bounded-concurrency detail lookup.
func (c *Client) ListPipelines(ctx context.Context, project string) ([]Pipeline, error) {
	var env listEnvelope[Pipeline]
	base := c.baseURL + "/" + url.PathEscape(project) + "/_apis/pipelines"
	if err := c.get(ctx, base, nil, &env); err != nil {
		return nil, err
	}

	pipelines := make([]Pipeline, len(env.Value))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFanout)
	for i, summary := range env.Value {
		i, summary := i, summary
		g.Go(func() error {
			p, err := c.GetPipeline(gctx, project, summary.ID)
			if err != nil {
				// Individual pipelines can vanish between the listing
				// and the detail call; skip those.
				if !IsFatal(err) {
					c.logger.Warn("skipping pipeline", "project", project, "pipeline", summary.ID, "error", err)
					pipelines[i] = Pipeline{ID: -1}
					return nil
				}
				return err
			}
			pipelines[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := pipelines[:0]
	for _, p := range pipelines {
		if p.ID > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPipeline gets a single pipeline with its configuration.
func (c *Client) GetPipeline(ctx context.Context, project string, id int) (Pipeline, error) {
	var d pipelineDetail
	url_ := c.baseURL + "/" + url.PathEscape(project) + "/_apis/pipelines/" + strconv.Itoa(id)
	if err := c.get(ctx, url_, nil, &d); err != nil {
		return Pipeline{}, err
	}
	return Pipeline{
		ID:           d.ID,
		Name:         d.Name,
		Folder:       d.Folder,
		Path:         d.Configuration.Path,
		RepositoryID: d.Configuration.Repository.ID,
	}, nil
}

// FetchFile returns the raw content of a file at the given branch.
func (c *Client) FetchFile(ctx context.Context, project, repository, path, ref string) (string, error) {
	params := url.Values{}
	params.Set("path", path)
	params.Set("includeContent", "true")
	if ref != "" {
		params.Set("versionDescriptor.version", shortBranch(ref))
		params.Set("versionDescriptor.versionType", "branch")
	}
	url_ := c.baseURL + "/" + url.PathEscape(project) + "/_apis/git/repositories/" + url.PathEscape(repository) + "/items"

	body, err := c.getRaw(ctx, url_, params)
	if err != nil {
		return "", err
	}
	var item struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return "", fmt.Errorf("decoding item content for %s: %w", path, err)
	}
	return item.Content, nil
}

// ListItems lists repository items recursively under scopePath (the
// whole repository when scopePath is empty).
func (c *Client) ListItems(ctx context.Context, project, repository, scopePath, ref string) ([]Item, error) {
	params := url.Values{}
	params.Set("recursionLevel", "full")
	if scopePath != "" {
		params.Set("scopePath", scopePath)
	}
	if ref != "" {
		params.Set("versionDescriptor.version", shortBranch(ref))
		params.Set("versionDescriptor.versionType", "branch")
	}
	var env listEnvelope[Item]
	url_ := c.baseURL + "/" + url.PathEscape(project) + "/_apis/git/repositories/" + url.PathEscape(repository) + "/items"
	if err := c.get(ctx, url_, params, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}
