package azdo

import "strings"

// Project is an Azure DevOps project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repository is a git repository within a project.
type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ProjectID     string `json:"-"`
	ProjectName   string `json:"-"`
	DefaultBranch string `json:"defaultBranch"`
	Disabled      bool   `json:"isDisabled"`
}

// Pipeline is a YAML pipeline definition registered in a project.
// Path is the repository-relative location of its root definition file;
// it is empty for classic (non-YAML) pipelines.
type Pipeline struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Folder       string `json:"folder"`
	Path         string `json:"-"`
	RepositoryID string `json:"-"`
	ProjectID    string `json:"-"`
}

// Item is an entry returned by the repository items API.
type Item struct {
	Path     string `json:"path"`
	IsFolder bool   `json:"isFolder"`
}

// listEnvelope is the standard {count, value} wrapper on list responses.
type listEnvelope[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// pipelineDetail is the response shape of GET _apis/pipelines/{id}.
type pipelineDetail struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Folder        string `json:"folder"`
	Configuration struct {
		Type       string `json:"type"`
		Path       string `json:"path"`
		Repository struct {
			ID string `json:"id"`
		} `json:"repository"`
	} `json:"configuration"`
}

// shortBranch strips the refs/heads/ prefix from a git ref.
func shortBranch(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
