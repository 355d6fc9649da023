// Package track orchestrates a scan: it enumerates the target scope,
// resolves each pipeline's template graph, classifies the result against
// the tracked templates, and aggregates compliance bottom-up.
package track

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/fetch"
	"github.com/adotrack/adotrack/internal/resolver"
)

// pipelineFanout bounds concurrent pipeline resolutions. File-level
// fetch concurrency is bounded separately by the fetch cache.
const pipelineFanout = 10

// Target narrows the scan scope. Empty fields widen it: no project
// means the whole organization, no repository means every repository in
// the project, no pipeline id means every pipeline in the repository.
type Target struct {
	Project    string
	Repository string
	PipelineID int
}

// Options configures one scan.
type Options struct {
	Organization string
	Target       Target
	Mode         adoption.Mode
}

// Gateway is the subset of the Azure DevOps client the tracker needs to
// enumerate the scope.
type Gateway interface {
	ListProjects(ctx context.Context) ([]azdo.Project, error)
	GetProject(ctx context.Context, project string) (azdo.Project, error)
	ListRepositories(ctx context.Context, project string) ([]azdo.Repository, error)
	GetRepository(ctx context.Context, project, repository string) (azdo.Repository, error)
	ListPipelines(ctx context.Context, project string) ([]azdo.Pipeline, error)
	GetPipeline(ctx context.Context, project string, id int) (azdo.Pipeline, error)
}

// Outcome is the result of one scan.
type Outcome struct {
	Organization *adoption.OrganizationNode
	Metrics      *adoption.Metrics
}

// Tracker runs scans against one organization.
type Tracker struct {
	gateway  Gateway
	resolver *resolver.Resolver
	tracked  *adoption.TrackedSet
	logger   *slog.Logger
}

// New creates a tracker.
func New(gateway Gateway, res *resolver.Resolver, tracked *adoption.TrackedSet, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{gateway: gateway, resolver: res, tracked: tracked, logger: logger}
}

// job is one pipeline queued for resolution, with the tree slot its
// node belongs in.
type job struct {
	projectName string
	repo        azdo.Repository
	pipe        azdo.Pipeline
	slot        *adoption.RepositoryNode
}

// Run executes one scan and returns the aggregated tree plus usage
// metrics. Fatal access errors abort the scan; everything else degrades
// the affected pipeline only.
func (t *Tracker) Run(ctx context.Context, opts Options) (*Outcome, error) {
	start := time.Now()

	org := &adoption.OrganizationNode{Name: opts.Organization}
	jobs, err := t.enumerate(ctx, opts.Target, org)
	if err != nil {
		return nil, err
	}
	t.logger.Info("scope enumerated",
		"projects", len(org.Projects),
		"pipelines", len(jobs),
		"templates", t.tracked.Len())

	metrics := adoption.NewMetrics(opts.Mode)
	nodes := make([]*adoption.PipelineNode, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pipelineFanout)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			node, err := t.resolveOne(gctx, j)
			if err != nil {
				return err
			}
			nodes[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, j := range jobs {
		node := nodes[i]
		j.slot.Pipelines = append(j.slot.Pipelines, node)
		for _, match := range node.Matches {
			metrics.AddUsage(match.TemplatePath, j.projectName, j.repo.Name, node.Name)
		}
	}

	adoption.Aggregate(org, opts.Mode)
	metrics.ProcessingTime = time.Since(start)

	return &Outcome{Organization: org, Metrics: metrics}, nil
}

// resolveOne resolves and classifies a single pipeline.
func (t *Tracker) resolveOne(ctx context.Context, j job) (*adoption.PipelineNode, error) {
	root := fetch.Key{
		Project:    j.projectName,
		Repository: j.repo.Name,
		Path:       strings.TrimPrefix(j.pipe.Path, "/"),
		Ref:        j.repo.DefaultBranch,
	}
	t.logger.Debug("resolving pipeline", "pipeline", j.pipe.Name, "root", root.String())

	res, err := t.resolver.Resolve(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("resolving pipeline %q in %s/%s: %w", j.pipe.Name, j.projectName, j.repo.Name, err)
	}

	cls := adoption.Classify(res.Edges, t.tracked)
	return &adoption.PipelineNode{
		ID:         j.pipe.ID,
		Name:       j.pipe.Name,
		Path:       root.Path,
		Folder:     j.pipe.Folder,
		Matched:    cls.Matched,
		Usage:      string(cls.Usage),
		Matches:    cls.Matches,
		Unresolved: res.Unresolved,
	}, nil
}

// enumerate builds the node skeleton for the target scope and the flat
// list of pipelines to resolve.
func (t *Tracker) enumerate(ctx context.Context, target Target, org *adoption.OrganizationNode) ([]job, error) {
	projects, err := t.scopeProjects(ctx, target)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, project := range projects {
		node := &adoption.ProjectNode{Name: project.Name}

		projectJobs, err := t.enumerateProject(ctx, project, target, node)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, projectJobs...)
		org.Projects = append(org.Projects, node)
	}
	return jobs, nil
}

func (t *Tracker) scopeProjects(ctx context.Context, target Target) ([]azdo.Project, error) {
	if target.Project == "" {
		return t.gateway.ListProjects(ctx)
	}
	p, err := t.gateway.GetProject(ctx, target.Project)
	if err != nil {
		return nil, fmt.Errorf("looking up project %q: %w", target.Project, err)
	}
	return []azdo.Project{p}, nil
}

func (t *Tracker) enumerateProject(ctx context.Context, project azdo.Project, target Target, node *adoption.ProjectNode) ([]job, error) {
	repos, err := t.scopeRepositories(ctx, project.Name, target)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]azdo.Repository, len(repos))
	slots := make(map[string]*adoption.RepositoryNode, len(repos))
	for _, repo := range repos {
		if repo.Disabled {
			t.logger.Debug("skipping disabled repository", "project", project.Name, "repository", repo.Name)
			continue
		}
		if t.isSourceRepo(project.Name, repo.Name) {
			t.logger.Debug("skipping source repository", "project", project.Name, "repository", repo.Name)
			continue
		}
		slot := &adoption.RepositoryNode{Name: repo.Name}
		byID[repo.ID] = repo
		slots[repo.ID] = slot
		node.Repositories = append(node.Repositories, slot)
	}

	pipelines, err := t.scopePipelines(ctx, project.Name, target)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, pipe := range pipelines {
		// Classic designer pipelines have no YAML definition, and
		// pipelines hosted outside the project's git repositories are
		// out of reach.
		if pipe.Path == "" {
			continue
		}
		slot, ok := slots[pipe.RepositoryID]
		if !ok {
			continue
		}
		jobs = append(jobs, job{
			projectName: project.Name,
			repo:        byID[pipe.RepositoryID],
			pipe:        pipe,
			slot:        slot,
		})
	}
	return jobs, nil
}

func (t *Tracker) scopeRepositories(ctx context.Context, project string, target Target) ([]azdo.Repository, error) {
	if target.Repository == "" {
		return t.gateway.ListRepositories(ctx, project)
	}
	repo, err := t.gateway.GetRepository(ctx, project, target.Repository)
	if err != nil {
		return nil, fmt.Errorf("looking up repository %q: %w", target.Repository, err)
	}
	return []azdo.Repository{repo}, nil
}

func (t *Tracker) scopePipelines(ctx context.Context, project string, target Target) ([]azdo.Pipeline, error) {
	if target.PipelineID == 0 {
		return t.gateway.ListPipelines(ctx, project)
	}
	pipe, err := t.gateway.GetPipeline(ctx, project, target.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("looking up pipeline %d: %w", target.PipelineID, err)
	}
	return []azdo.Pipeline{pipe}, nil
}

// isSourceRepo reports whether the repository is the one hosting the
// tracked templates. Its own pipelines never count toward adoption.
func (t *Tracker) isSourceRepo(project, repository string) bool {
	if !strings.EqualFold(repository, t.tracked.Repository()) {
		return false
	}
	return t.tracked.Project() == "" || strings.EqualFold(project, t.tracked.Project())
}
