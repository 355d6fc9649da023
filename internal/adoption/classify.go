package adoption

import (
	"sort"
	"strings"

	"github.com/adotrack/adotrack/internal/pipeline"
)

// TemplateRef is one edge in a pipeline's resolved reference graph.
type TemplateRef struct {
	Project    string
	Repository string
	Path       string
	Ref        string
	Usage      pipeline.UsageType
	Depth      int
}

// TrackedSet is the set of template paths being audited, all living in
// one source repository. Matching is ref-agnostic: branch differences do
// not change template identity.
type TrackedSet struct {
	project    string
	repository string
	paths      map[string]struct{}
}

// NewTrackedSet builds a tracked set for templates in project/repository.
func NewTrackedSet(project, repository string, paths []string) *TrackedSet {
	set := &TrackedSet{
		project:    project,
		repository: repository,
		paths:      make(map[string]struct{}, len(paths)),
	}
	for _, p := range paths {
		set.paths[normalizePath(p)] = struct{}{}
	}
	return set
}

// Project returns the source project name.
func (t *TrackedSet) Project() string { return t.project }

// Repository returns the source repository name.
func (t *TrackedSet) Repository() string { return t.repository }

// Len returns the number of tracked template paths.
func (t *TrackedSet) Len() int { return len(t.paths) }

// Paths returns the tracked paths in sorted order.
func (t *TrackedSet) Paths() []string {
	paths := make([]string, 0, len(t.paths))
	for p := range t.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Contains reports whether ref points at a tracked template.
func (t *TrackedSet) Contains(ref TemplateRef) bool {
	if ref.Repository != t.repository {
		return false
	}
	if ref.Project != "" && t.project != "" && ref.Project != t.project {
		return false
	}
	_, ok := t.paths[normalizePath(ref.Path)]
	return ok
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.TrimSpace(p), "/")
}

// MatchedTemplate is one tracked template a pipeline was found to use.
type MatchedTemplate struct {
	TemplatePath string
	Usage        pipeline.UsageType
}

// Classification is the per-pipeline match verdict.
type Classification struct {
	Matched bool
	// Usage is the usage type of the strongest edge reaching any
	// tracked template; only meaningful when Matched.
	Usage pipeline.UsageType
	// Matches lists every tracked template reached, each with the
	// usage type of its own strongest edge, sorted by path.
	Matches []MatchedTemplate
}

// Classify decides whether the resolved edge set reaches any tracked
// template, and through which relationship.
func Classify(edges []TemplateRef, tracked *TrackedSet) Classification {
	best := make(map[string]TemplateRef)
	var overall *TemplateRef

	for _, edge := range edges {
		if !tracked.Contains(edge) {
			continue
		}
		path := normalizePath(edge.Path)
		if current, ok := best[path]; !ok || stronger(edge, current) {
			best[path] = edge
		}
		if overall == nil || stronger(edge, *overall) {
			e := edge
			overall = &e
		}
	}

	if overall == nil {
		return Classification{}
	}

	matches := make([]MatchedTemplate, 0, len(best))
	for path, edge := range best {
		matches = append(matches, MatchedTemplate{TemplatePath: path, Usage: edge.Usage})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].TemplatePath < matches[j].TemplatePath
	})

	return Classification{Matched: true, Usage: overall.Usage, Matches: matches}
}

// stronger reports whether a is a more relevant adoption signal than b:
// the smaller depth wins, and at equal depth an extension relationship
// beats an inclusion. Kept as the single place this rule lives.
func stronger(a, b TemplateRef) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Usage == pipeline.UsageExtend && b.Usage == pipeline.UsageInclude
}
