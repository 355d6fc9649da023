// Package resolver walks a pipeline's template reference graph to a
// fixed point. Files are identified by explicit (project, repository,
// path, ref) keys in a visited set, so cyclic and mutually-extending
// templates terminate, and every reference edge keeps its own depth and
// usage type for later classification.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/fetch"
	"github.com/adotrack/adotrack/internal/pipeline"
)

// defaultRef is assumed for alias declarations without an explicit ref.
const defaultRef = "main"

// Result is the outcome of resolving one pipeline's root definition.
type Result struct {
	// Edges is every reference edge encountered, in traversal order.
	Edges []adoption.TemplateRef
	// Unresolved collects per-file and per-edge diagnostics: parse
	// failures, unknown aliases, missing files, exhausted retries.
	// These degrade the pipeline, never the scan.
	Unresolved []string
}

// Resolver resolves reference graphs through a shared fetch cache.
type Resolver struct {
	cache  *fetch.Cache
	logger *slog.Logger
}

// New creates a resolver over the given cache.
func New(cache *fetch.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{cache: cache, logger: logger}
}

// workItem is one file queued for expansion.
type workItem struct {
	key   fetch.Key
	depth int
	scope *pipeline.AliasScope
}

// Resolve walks the reference graph from root. Only fatal access errors
// are returned as errors; all other failures are collected in the
// result and the affected edges dropped.
func (r *Resolver) Resolve(ctx context.Context, root fetch.Key) (Result, error) {
	var result Result

	visited := map[fetch.Key]bool{root: true}
	missing := make(map[fetch.Key]bool)
	queue := []workItem{{key: root, depth: 0, scope: pipeline.NewAliasScope()}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		def, err := r.cache.Definition(ctx, item.key)
		if err != nil {
			if azdo.IsFatal(err) || errors.Is(err, context.Canceled) {
				return Result{}, err
			}
			if errors.Is(err, azdo.ErrNotFound) {
				missing[item.key] = true
			}
			result.Unresolved = append(result.Unresolved, describeFailure(item.key, err))
			continue
		}

		// Aliases declared here are visible to this file and its
		// descendants, shadowing inherited ones.
		scope := item.scope.Child()
		for _, decl := range def.Aliases {
			target := pipeline.Target{
				Project:    decl.Project,
				Repository: decl.Repository,
				Ref:        decl.Ref,
			}
			if target.Project == "" {
				target.Project = item.key.Project
			}
			if target.Ref == "" {
				target.Ref = defaultRef
			}
			scope.Register(decl.Alias, target)
		}

		for _, ref := range def.References() {
			childKey, ok := r.resolveTarget(item.key, ref, scope, &result)
			if !ok {
				continue
			}

			result.Edges = append(result.Edges, adoption.TemplateRef{
				Project:    childKey.Project,
				Repository: childKey.Repository,
				Path:       childKey.Path,
				Ref:        childKey.Ref,
				Usage:      ref.Usage,
				Depth:      item.depth + 1,
			})

			if !visited[childKey] {
				visited[childKey] = true
				queue = append(queue, workItem{key: childKey, depth: item.depth + 1, scope: scope})
			}
		}
	}

	// Edges into files that turned out not to exist describe nothing;
	// they are dropped, leaving only their unresolved diagnostics.
	if len(missing) > 0 {
		kept := result.Edges[:0]
		for _, edge := range result.Edges {
			key := fetch.Key{Project: edge.Project, Repository: edge.Repository, Path: edge.Path, Ref: edge.Ref}
			if !missing[key] {
				kept = append(kept, edge)
			}
		}
		result.Edges = kept
	}

	return result, nil
}

// resolveTarget turns a raw reference into a concrete file key.
// Unqualified paths resolve against the current file's repository and
// ref, relative to the current file's directory.
func (r *Resolver) resolveTarget(current fetch.Key, ref pipeline.RawRef, scope *pipeline.AliasScope, result *Result) (fetch.Key, bool) {
	if ref.Alias == "" {
		return fetch.Key{
			Project:    current.Project,
			Repository: current.Repository,
			Path:       resolveLocalPath(current.Path, ref.Path),
			Ref:        current.Ref,
		}, true
	}

	target, ok := scope.Resolve(ref.Alias)
	if !ok {
		r.logger.Debug("unknown resource alias", "alias", ref.Alias, "file", current.String())
		result.Unresolved = append(result.Unresolved,
			fmt.Sprintf("%s: unknown resource alias %q", current.String(), ref.Alias))
		return fetch.Key{}, false
	}

	return fetch.Key{
		Project:    target.Project,
		Repository: target.Repository,
		Path:       strings.TrimPrefix(ref.Path, "/"),
		Ref:        target.Ref,
	}, true
}

// resolveLocalPath resolves a same-repository reference: absolute paths
// are taken from the repository root, relative ones from the directory
// of the referencing file.
func resolveLocalPath(currentFile, refPath string) string {
	if strings.HasPrefix(refPath, "/") {
		return strings.TrimPrefix(path.Clean(refPath), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(currentFile), refPath), "/")
}

func describeFailure(key fetch.Key, err error) string {
	switch {
	case errors.Is(err, azdo.ErrNotFound):
		return fmt.Sprintf("%s: template file not found", key.String())
	case pipeline.IsParseError(err):
		return fmt.Sprintf("%s: %v", key.String(), err)
	default:
		return fmt.Sprintf("%s: fetch failed: %v", key.String(), err)
	}
}
