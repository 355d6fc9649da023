package adoption

import (
	"sort"
	"time"
)

// Metrics collects per-template usage across the scanned scope.
type Metrics struct {
	Mode           Mode
	ProcessingTime time.Duration

	usage        map[string]int
	projects     map[string]map[string]struct{}
	repositories map[string]map[string]struct{}
	pipelines    map[string]map[string]struct{}
}

// NewMetrics creates an empty metrics collector.
func NewMetrics(mode Mode) *Metrics {
	return &Metrics{
		Mode:         mode,
		usage:        make(map[string]int),
		projects:     make(map[string]map[string]struct{}),
		repositories: make(map[string]map[string]struct{}),
		pipelines:    make(map[string]map[string]struct{}),
	}
}

// AddUsage records one use of template, attributing it to the given
// project, repository, and pipeline (any of which may be empty when the
// scope does not carry that level).
func (m *Metrics) AddUsage(template, project, repository, pipelineName string) {
	m.usage[template]++
	add := func(index map[string]map[string]struct{}, member string) {
		if member == "" {
			return
		}
		set, ok := index[template]
		if !ok {
			set = make(map[string]struct{})
			index[template] = set
		}
		set[member] = struct{}{}
	}
	add(m.projects, project)
	add(m.repositories, repository)
	add(m.pipelines, pipelineName)
}

// Templates returns all used template paths in sorted order.
func (m *Metrics) Templates() []string {
	templates := make([]string, 0, len(m.usage))
	for t := range m.usage {
		templates = append(templates, t)
	}
	sort.Strings(templates)
	return templates
}

// UsageCount returns how many times template was used.
func (m *Metrics) UsageCount(template string) int { return m.usage[template] }

// ProjectCount returns the number of distinct projects using template.
func (m *Metrics) ProjectCount(template string) int { return len(m.projects[template]) }

// RepositoryCount returns the number of distinct repositories using template.
func (m *Metrics) RepositoryCount(template string) int { return len(m.repositories[template]) }

// PipelineCount returns the number of distinct pipelines using template.
func (m *Metrics) PipelineCount(template string) int { return len(m.pipelines[template]) }
