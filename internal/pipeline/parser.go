// Package pipeline parses Azure DevOps pipeline and template definitions
// into a small closed set of reference variants: repository alias
// declarations, a single extension reference, and step-level template
// references. No raw YAML structures escape this package.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// UsageType describes how a referencing file pulls in a template.
type UsageType string

const (
	// UsageExtend marks the file's single top-level extension base.
	UsageExtend UsageType = "extend"
	// UsageInclude marks a step-level template insertion.
	UsageInclude UsageType = "include"
)

// RawRef is a template reference as written in a definition file.
// Path is the repository-relative template path; Alias is the resource
// alias after '@', empty for references into the current repository.
type RawRef struct {
	Path  string
	Alias string
	Usage UsageType
}

// AliasDecl declares a short alias for an external repository in the
// resources section. Project may be empty when the declaration names a
// repository without qualifying its project.
type AliasDecl struct {
	Alias      string
	Project    string
	Repository string
	Ref        string
}

// Definition is the parsed form of one pipeline or template file.
type Definition struct {
	Aliases   []AliasDecl
	Extension *RawRef
	Steps     []RawRef
}

// References returns the extension (if any) followed by all step refs.
func (d *Definition) References() []RawRef {
	refs := make([]RawRef, 0, len(d.Steps)+1)
	if d.Extension != nil {
		refs = append(refs, *d.Extension)
	}
	return append(refs, d.Steps...)
}

// ParseError reports a structurally invalid definition. It is scoped to
// a single file and never aborts a scan.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid definition: %s: %v", e.Reason, e.Err)
	}
	return "invalid definition: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is a definition parse error.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse turns raw YAML content into a Definition. It fails only on
// structurally invalid input: content that is not a mapping, or a
// template reference without a path.
func Parse(content []byte) (*Definition, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &ParseError{Reason: "malformed YAML", Err: err}
	}

	doc, ok := root.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "definition is not a mapping"}
	}

	def := &Definition{}
	if err := parseAliases(doc, def); err != nil {
		return nil, err
	}
	if err := parseExtension(doc, def); err != nil {
		return nil, err
	}

	// Step references live anywhere below the top level. Inside the
	// extends block only the template key is the extension itself;
	// parameter-passed steps under it are ordinary includes.
	for key, value := range doc {
		if key == "extends" {
			extends, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for k, child := range extends {
				if k == "template" {
					continue
				}
				if err := collectStepRefs(child, def); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := collectStepRefs(value, def); err != nil {
			return nil, err
		}
	}
	return def, nil
}

// parseAliases reads resources.repositories declarations of type git.
func parseAliases(doc map[string]any, def *Definition) error {
	resources, ok := doc["resources"].(map[string]any)
	if !ok {
		return nil
	}
	repos, ok := resources["repositories"].([]any)
	if !ok {
		return nil
	}

	for _, entry := range repos {
		repo, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := repo["type"].(string); typ != "git" {
			continue
		}
		alias, _ := repo["repository"].(string)
		name, _ := repo["name"].(string)
		if alias == "" || name == "" {
			continue
		}

		decl := AliasDecl{Alias: alias}
		if project, repository, found := strings.Cut(name, "/"); found {
			decl.Project = project
			decl.Repository = repository
		} else {
			decl.Repository = name
		}
		if ref, _ := repo["ref"].(string); ref != "" {
			decl.Ref = ref
		}
		def.Aliases = append(def.Aliases, decl)
	}
	return nil
}

// parseExtension reads the top-level extends block.
func parseExtension(doc map[string]any, def *Definition) error {
	raw, present := doc["extends"]
	if !present {
		return nil
	}
	extends, ok := raw.(map[string]any)
	if !ok {
		return &ParseError{Reason: "extends is not a mapping"}
	}
	tmpl, present := extends["template"]
	if !present {
		return nil
	}
	ref, err := splitRef(tmpl, UsageExtend)
	if err != nil {
		return err
	}
	def.Extension = &ref
	return nil
}

// collectStepRefs walks a YAML subtree collecting template references.
func collectStepRefs(node any, def *Definition) error {
	switch v := node.(type) {
	case map[string]any:
		if tmpl, present := v["template"]; present {
			ref, err := splitRef(tmpl, UsageInclude)
			if err != nil {
				return err
			}
			def.Steps = append(def.Steps, ref)
		}
		for _, child := range v {
			if err := collectStepRefs(child, def); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range v {
			if err := collectStepRefs(child, def); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitRef validates a template value and splits "path@alias".
func splitRef(value any, usage UsageType) (RawRef, error) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return RawRef{}, &ParseError{Reason: "template reference missing a path"}
	}
	path, alias, _ := strings.Cut(s, "@")
	if strings.TrimSpace(path) == "" {
		return RawRef{}, &ParseError{Reason: "template reference missing a path"}
	}
	return RawRef{Path: strings.TrimSpace(path), Alias: alias, Usage: usage}, nil
}
