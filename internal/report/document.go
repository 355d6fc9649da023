package report

import (
	"encoding/json"
	"io"

	"github.com/adotrack/adotrack/internal/adoption"
)

// The document types define the stable JSON shape of each view.

type statsDoc struct {
	Rate           float64 `json:"rate"`
	CompliantCount int     `json:"compliantCount"`
	TotalCount     int     `json:"totalCount"`
}

type matchDoc struct {
	TemplatePath string `json:"templatePath"`
	UsageType    string `json:"usageType"`
}

type pipelineDoc struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Folder     string     `json:"folder,omitempty"`
	Compliant  bool       `json:"compliant"`
	UsageType  string     `json:"usageType,omitempty"`
	Matches    []matchDoc `json:"matches,omitempty"`
	Unresolved []string   `json:"unresolved,omitempty"`
}

type repositoryDoc struct {
	Name          string        `json:"name"`
	AdoptionStats statsDoc      `json:"adoptionStats"`
	Compliant     bool          `json:"compliant"`
	Pipelines     []pipelineDoc `json:"pipelines"`
}

type projectDoc struct {
	Name          string          `json:"name"`
	AdoptionStats statsDoc        `json:"adoptionStats"`
	Compliant     bool            `json:"compliant"`
	Repositories  []repositoryDoc `json:"repositories"`
}

type organizationDoc struct {
	Name          string       `json:"name"`
	AdoptionStats statsDoc     `json:"adoptionStats"`
	Compliant     bool         `json:"compliant"`
	Projects      []projectDoc `json:"projects"`
}

type templateUsageDoc struct {
	TemplatePath    string `json:"templatePath"`
	UsageCount      int    `json:"usageCount"`
	ProjectCount    int    `json:"projectCount"`
	RepositoryCount int    `json:"repositoryCount"`
	PipelineCount   int    `json:"pipelineCount"`
}

type overviewDoc struct {
	ComplianceMode string             `json:"complianceMode"`
	ProcessingTime string             `json:"processingTime"`
	AdoptionStats  statsDoc           `json:"adoptionStats"`
	Compliant      bool               `json:"compliant"`
	Templates      []templateUsageDoc `json:"templates"`
}

type nonCompliantEntry struct {
	Project    string   `json:"project"`
	Repository string   `json:"repository"`
	Pipeline   string   `json:"pipeline"`
	Unresolved []string `json:"unresolvedRefs,omitempty"`
}

type nonCompliantDoc struct {
	NonCompliant []nonCompliantEntry `json:"nonCompliant"`
	Unresolved   []nonCompliantEntry `json:"unresolved"`
}

func buildStatsDoc(s adoption.Stats) statsDoc {
	return statsDoc{Rate: s.Percent(), CompliantCount: s.Compliant, TotalCount: s.Total}
}

func buildPipelineDoc(p *adoption.PipelineNode) pipelineDoc {
	doc := pipelineDoc{
		ID:         p.ID,
		Name:       p.Name,
		Path:       p.Path,
		Folder:     p.Folder,
		Compliant:  p.Compliant(),
		UsageType:  p.Usage,
		Unresolved: p.Unresolved,
	}
	for _, m := range p.Matches {
		doc.Matches = append(doc.Matches, matchDoc{TemplatePath: m.TemplatePath, UsageType: string(m.Usage)})
	}
	return doc
}

func buildOrganizationDoc(org *adoption.OrganizationNode) organizationDoc {
	doc := organizationDoc{
		Name:          org.Name,
		AdoptionStats: buildStatsDoc(org.Stats),
		Compliant:     org.Verdict,
		Projects:      []projectDoc{},
	}
	for _, project := range org.Projects {
		pd := projectDoc{
			Name:          project.Name,
			AdoptionStats: buildStatsDoc(project.Stats),
			Compliant:     project.Verdict,
			Repositories:  []repositoryDoc{},
		}
		for _, repo := range project.Repositories {
			rd := repositoryDoc{
				Name:          repo.Name,
				AdoptionStats: buildStatsDoc(repo.Stats),
				Compliant:     repo.Verdict,
				Pipelines:     []pipelineDoc{},
			}
			for _, pipe := range repo.Pipelines {
				rd.Pipelines = append(rd.Pipelines, buildPipelineDoc(pipe))
			}
			pd.Repositories = append(pd.Repositories, rd)
		}
		doc.Projects = append(doc.Projects, pd)
	}
	return doc
}

func buildOverviewDoc(rep Report) overviewDoc {
	doc := overviewDoc{
		ComplianceMode: rep.Metrics.Mode.String(),
		ProcessingTime: rep.Metrics.ProcessingTime.String(),
		AdoptionStats:  buildStatsDoc(rep.Organization.Stats),
		Compliant:      rep.Organization.Verdict,
		Templates:      []templateUsageDoc{},
	}
	for _, t := range rep.Metrics.Templates() {
		doc.Templates = append(doc.Templates, templateUsageDoc{
			TemplatePath:    t,
			UsageCount:      rep.Metrics.UsageCount(t),
			ProjectCount:    rep.Metrics.ProjectCount(t),
			RepositoryCount: rep.Metrics.RepositoryCount(t),
			PipelineCount:   rep.Metrics.PipelineCount(t),
		})
	}
	return doc
}

// collectNonCompliant walks the tree for failing pipelines. Pipelines
// with unresolved references are reported separately: their verdict is
// not verified, a missing or unparsable file may hide a template use.
// The tree is name-sorted, so both lists come out sorted too.
func collectNonCompliant(org *adoption.OrganizationNode) (verified, unresolved []nonCompliantEntry) {
	verified = []nonCompliantEntry{}
	unresolved = []nonCompliantEntry{}
	for _, project := range org.Projects {
		for _, repo := range project.Repositories {
			for _, pipe := range repo.Pipelines {
				if pipe.Compliant() {
					continue
				}
				entry := nonCompliantEntry{
					Project:    project.Name,
					Repository: repo.Name,
					Pipeline:   pipe.Name,
					Unresolved: pipe.Unresolved,
				}
				if len(pipe.Unresolved) > 0 {
					unresolved = append(unresolved, entry)
				} else {
					verified = append(verified, entry)
				}
			}
		}
	}
	return verified, unresolved
}

func writeJSON(w io.Writer, doc any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
