// Package scanner discovers tracked templates in the source repository.
// It scans the configured directories (or the whole repository) for YAML
// files whose top-level structure looks like a pipeline template.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/adotrack/adotrack/internal/azdo"
)

// templateKeys are the top-level keys a pipeline template may carry.
// Files with none of them are configuration, not templates.
var templateKeys = []string{"stages", "extends", "jobs", "steps", "parameters", "variables"}

const contentFanout = 10

// Gateway is the subset of the Azure DevOps client the scanner needs.
type Gateway interface {
	ListItems(ctx context.Context, project, repository, scopePath, ref string) ([]azdo.Item, error)
	FetchFile(ctx context.Context, project, repository, path, ref string) (string, error)
}

// Source configures which templates to track: either one explicit
// template path, or every template under the given directories.
type Source struct {
	Project      string
	Repository   string
	Branch       string
	TemplatePath string
	Directories  []string
}

// Validate checks the source configuration.
func (s Source) Validate() error {
	if s.Repository == "" {
		return errors.New("source repository is required")
	}
	if s.TemplatePath != "" {
		if len(s.Directories) > 0 && !isRootOnly(s.Directories) {
			return errors.New("cannot specify both a source template and source directories")
		}
		if !isYAMLPath(s.TemplatePath) {
			return fmt.Errorf("source template %q must end with .yml or .yaml", s.TemplatePath)
		}
	}
	return nil
}

func isRootOnly(dirs []string) bool {
	return len(dirs) == 1 && strings.Trim(dirs[0], "/") == ""
}

func isYAMLPath(p string) bool {
	return strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".yaml")
}

// Scanner discovers template files through the gateway.
type Scanner struct {
	gateway Gateway
	logger  *slog.Logger
}

// New creates a scanner.
func New(gateway Gateway, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{gateway: gateway, logger: logger}
}

// Discover returns the repository-relative paths of all tracked
// templates for the source. With an explicit template path it returns
// just that path; otherwise it scans the source repository.
func (s *Scanner) Discover(ctx context.Context, src Source) ([]string, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.TemplatePath != "" {
		return []string{strings.TrimPrefix(src.TemplatePath, "/")}, nil
	}

	dirs := src.Directories
	if len(dirs) == 0 || isRootOnly(dirs) {
		dirs = []string{""}
	}

	var templates []string
	for _, dir := range dirs {
		scope := strings.Trim(dir, "/")
		s.logger.Info("scanning for templates", "repository", src.Repository, "directory", "/"+scope)

		items, err := s.gateway.ListItems(ctx, src.Project, src.Repository, scope, src.Branch)
		if err != nil {
			if azdo.IsFatal(err) {
				return nil, err
			}
			s.logger.Warn("failed to list source directory", "directory", scope, "error", err)
			continue
		}

		found, err := s.collectTemplates(ctx, src, items)
		if err != nil {
			return nil, err
		}
		templates = append(templates, found...)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates found in %s/%s", src.Project, src.Repository)
	}
	return templates, nil
}

// collectTemplates fetches candidate YAML files and keeps those whose
// content validates as a template.
func (s *Scanner) collectTemplates(ctx context.Context, src Source, items []azdo.Item) ([]string, error) {
	type candidate struct {
		path string
		keep bool
	}

	candidates := make([]candidate, 0, len(items))
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		p := strings.TrimPrefix(item.Path, "/")
		if !isYAMLPath(p) {
			continue
		}
		candidates = append(candidates, candidate{path: p})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contentFanout)
	for i := range candidates {
		i := i
		g.Go(func() error {
			c := &candidates[i]
			content, err := s.gateway.FetchFile(gctx, src.Project, src.Repository, c.path, src.Branch)
			if err != nil {
				if azdo.IsFatal(err) {
					return err
				}
				s.logger.Debug("skipping unreadable file", "path", c.path, "error", err)
				return nil
			}
			if reason := validateTemplate(content); reason != "" {
				s.logger.Debug("skipping non-template YAML", "path", c.path, "reason", reason)
				return nil
			}
			c.keep = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var templates []string
	for _, c := range candidates {
		if c.keep {
			templates = append(templates, c.path)
		}
	}
	return templates, nil
}

// validateTemplate returns an empty string when content parses as YAML
// and carries at least one template top-level key, or the reason it was
// rejected.
func validateTemplate(content string) string {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "malformed YAML"
	}
	if len(doc) == 0 {
		return "empty document"
	}
	for _, key := range templateKeys {
		if _, ok := doc[key]; ok {
			return ""
		}
	}
	return "no pipeline keys at top level"
}
