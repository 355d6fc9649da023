package adoption

import "sort"

// PipelineNode is the leaf of the hierarchy. Its verdict is a direct
// function of Matched, never of a threshold.
type PipelineNode struct {
	ID     int
	Name   string
	Path   string
	Folder string

	Matched bool
	Usage   string
	Matches []MatchedTemplate

	// Unresolved lists edges that could not be fully resolved (parse
	// failures, unknown aliases, missing files). A pipeline with
	// unresolved edges may appear non-compliant without being verified
	// as such.
	Unresolved []string
}

// Compliant returns the leaf verdict.
func (p *PipelineNode) Compliant() bool { return p.Matched }

// RepositoryNode groups the pipelines of one repository.
type RepositoryNode struct {
	Name      string
	Pipelines []*PipelineNode

	Stats   Stats
	Verdict bool
}

// ProjectNode groups the repositories of one project.
type ProjectNode struct {
	Name         string
	Repositories []*RepositoryNode

	Stats   Stats
	Verdict bool
}

// OrganizationNode is the root of the hierarchy.
type OrganizationNode struct {
	Name     string
	Projects []*ProjectNode

	Stats   Stats
	Verdict bool
}

// pipelineCount returns the number of pipelines anywhere beneath the node.
func (r *RepositoryNode) pipelineCount() int { return len(r.Pipelines) }

func (p *ProjectNode) pipelineCount() int {
	n := 0
	for _, repo := range p.Repositories {
		n += repo.pipelineCount()
	}
	return n
}

// Aggregate computes stats and verdicts bottom-up for the whole tree
// under the given mode, and sorts every level by name (case-sensitive,
// ascending) so report order never depends on resolution order.
//
// Children with no descendant pipelines are excluded from their parent's
// totals entirely: an empty repository contributes neither a compliant
// nor a non-compliant count.
func Aggregate(org *OrganizationNode, mode Mode) {
	sort.Slice(org.Projects, func(i, j int) bool { return org.Projects[i].Name < org.Projects[j].Name })

	org.Stats = Stats{}
	for _, project := range org.Projects {
		aggregateProject(project, mode)
		if project.pipelineCount() == 0 {
			continue
		}
		org.Stats.Total++
		if project.Verdict {
			org.Stats.Compliant++
		}
	}
	org.Verdict = Compliant(org.Stats.Compliant, org.Stats.Total, mode)
}

func aggregateProject(project *ProjectNode, mode Mode) {
	sort.Slice(project.Repositories, func(i, j int) bool {
		return project.Repositories[i].Name < project.Repositories[j].Name
	})

	project.Stats = Stats{}
	for _, repo := range project.Repositories {
		aggregateRepository(repo, mode)
		if repo.pipelineCount() == 0 {
			continue
		}
		project.Stats.Total++
		if repo.Verdict {
			project.Stats.Compliant++
		}
	}
	project.Verdict = Compliant(project.Stats.Compliant, project.Stats.Total, mode)
}

func aggregateRepository(repo *RepositoryNode, mode Mode) {
	sort.Slice(repo.Pipelines, func(i, j int) bool { return repo.Pipelines[i].Name < repo.Pipelines[j].Name })

	repo.Stats = Stats{}
	for _, p := range repo.Pipelines {
		repo.Stats.Total++
		if p.Compliant() {
			repo.Stats.Compliant++
		}
	}
	repo.Verdict = Compliant(repo.Stats.Compliant, repo.Stats.Total, mode)
}
