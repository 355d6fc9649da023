package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/fetch"
	"github.com/adotrack/adotrack/internal/pipeline"
	"github.com/adotrack/adotrack/internal/testutil"
)

type fileGateway struct {
	files map[string]string
}

func (g *fileGateway) FetchFile(_ context.Context, project, repository, path, ref string) (string, error) {
	key := fetch.Key{Project: project, Repository: repository, Path: path, Ref: ref}
	if content, ok := g.files[key.String()]; ok {
		return content, nil
	}
	return "", fmt.Errorf("%s: %w", key.String(), azdo.ErrNotFound)
}

func newTestResolver(t *testing.T, files map[fetch.Key]string) *Resolver {
	t.Helper()
	gw := &fileGateway{files: make(map[string]string, len(files))}
	for k, content := range files {
		gw.files[k.String()] = content
	}
	logger := testutil.NewTestLogger(t)
	return New(fetch.New(gw, 0, logger), logger)
}

func edgeFor(result Result, path string) (adoption.TemplateRef, bool) {
	for _, e := range result.Edges {
		if e.Path == path {
			return e, true
		}
	}
	return adoption.TemplateRef{}, false
}

func TestResolveCrossRepositoryExtension(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "main"}
	base := fetch.Key{Project: "Platform", Repository: "pipeline-templates", Path: "templates/base.yml", Ref: "refs/heads/main"}
	steps := fetch.Key{Project: "Platform", Repository: "pipeline-templates", Path: "templates/steps/unit.yml", Ref: "refs/heads/main"}

	r := newTestResolver(t, map[fetch.Key]string{
		root: `
resources:
  repositories:
    - repository: shared
      type: git
      name: Platform/pipeline-templates
      ref: refs/heads/main
extends:
  template: templates/base.yml@shared
`,
		base: `
stages:
  - stage: test
    jobs:
      - job: unit
        steps:
          - template: steps/unit.yml
`,
		steps: "steps:\n  - script: make test\n",
	})

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, result.Unresolved)
	require.Len(t, result.Edges, 2)

	edge, ok := edgeFor(result, "templates/base.yml")
	require.True(t, ok)
	assert.Equal(t, "Platform", edge.Project)
	assert.Equal(t, "pipeline-templates", edge.Repository)
	assert.Equal(t, "refs/heads/main", edge.Ref)
	assert.Equal(t, pipeline.UsageExtend, edge.Usage)
	assert.Equal(t, 1, edge.Depth)

	// The nested include resolves relative to the including file's
	// directory, inside the same repository and ref.
	edge, ok = edgeFor(result, "templates/steps/unit.yml")
	require.True(t, ok)
	assert.Equal(t, "pipeline-templates", edge.Repository)
	assert.Equal(t, pipeline.UsageInclude, edge.Usage)
	assert.Equal(t, 2, edge.Depth)
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	a := fetch.Key{Project: "alpha", Repository: "app", Path: "a.yml", Ref: "main"}
	b := fetch.Key{Project: "alpha", Repository: "app", Path: "b.yml", Ref: "main"}

	r := newTestResolver(t, map[fetch.Key]string{
		a: "steps:\n  - template: b.yml\n",
		b: "steps:\n  - template: a.yml\n",
	})

	result, err := r.Resolve(context.Background(), a)
	require.NoError(t, err)

	// Both edges exist, each file is expanded once, and the walk ends.
	require.Len(t, result.Edges, 2)
	assert.Empty(t, result.Unresolved)
}

func TestResolveAbsoluteAndRelativePaths(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "pipelines/ci.yml", Ref: "main"}
	rel := fetch.Key{Project: "alpha", Repository: "app", Path: "pipelines/steps/lint.yml", Ref: "main"}
	abs := fetch.Key{Project: "alpha", Repository: "app", Path: "shared/build.yml", Ref: "main"}

	r := newTestResolver(t, map[fetch.Key]string{
		root: `
steps:
  - template: steps/lint.yml
  - template: /shared/build.yml
`,
		rel: "steps:\n  - script: lint\n",
		abs: "steps:\n  - script: build\n",
	})

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, result.Unresolved)

	_, ok := edgeFor(result, "pipelines/steps/lint.yml")
	assert.True(t, ok, "relative path resolves from the referencing file's directory")
	_, ok = edgeFor(result, "shared/build.yml")
	assert.True(t, ok, "absolute path resolves from the repository root")
}

func TestResolveUnknownAlias(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "main"}

	r := newTestResolver(t, map[fetch.Key]string{
		root: "extends:\n  template: base.yml@nowhere\n",
	})

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, result.Edges)
	require.Len(t, result.Unresolved, 1)
	assert.Contains(t, result.Unresolved[0], "nowhere")
}

func TestResolveMissingTemplate(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "main"}

	r := newTestResolver(t, map[fetch.Key]string{
		root: "steps:\n  - template: gone.yml\n",
	})

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)

	// A reference into a file that does not exist describes nothing:
	// the edge is dropped and the failure reported, not fatal.
	assert.Empty(t, result.Edges)
	require.Len(t, result.Unresolved, 1)
	assert.Contains(t, result.Unresolved[0], "not found")
}

func TestResolveAliasDefaultsProjectAndRef(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "dev"}
	tools := fetch.Key{Project: "alpha", Repository: "tools", Path: "build.yml", Ref: "main"}

	r := newTestResolver(t, map[fetch.Key]string{
		root: `
resources:
  repositories:
    - repository: tools
      type: git
      name: tools
steps:
  - template: build.yml@tools
`,
		tools: "steps:\n  - script: build\n",
	})

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, result.Unresolved)

	edge, ok := edgeFor(result, "build.yml")
	require.True(t, ok)
	// An unqualified declaration stays in the current project and
	// defaults to the main branch.
	assert.Equal(t, "alpha", edge.Project)
	assert.Equal(t, "tools", edge.Repository)
	assert.Equal(t, "main", edge.Ref)
}

func TestResolveRootNotFound(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "main"}

	r := newTestResolver(t, nil)

	result, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, result.Edges)
	require.Len(t, result.Unresolved, 1)
}

func TestResolveFatalAccessError(t *testing.T) {
	root := fetch.Key{Project: "alpha", Repository: "app", Path: "ci.yml", Ref: "main"}

	gw := &deniedGateway{}
	logger := testutil.NewTestLogger(t)
	r := New(fetch.New(gw, 0, logger), logger)

	_, err := r.Resolve(context.Background(), root)
	require.Error(t, err)
	assert.True(t, azdo.IsFatal(err))
}

type deniedGateway struct{}

func (deniedGateway) FetchFile(context.Context, string, string, string, string) (string, error) {
	return "", &azdo.AccessError{Status: 403, URL: "u"}
}
