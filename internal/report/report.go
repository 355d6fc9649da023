// Package report renders scan outcomes in several formats and views.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/adotrack/adotrack/internal/adoption"
)

// Format selects the output encoding.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format name, accepting "md" for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "plain", "text":
		return FormatPlain, nil
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: plain, table, json, markdown)", s)
}

// View selects which projection of the outcome to render.
type View string

const (
	// ViewTarget is the full compliance tree for the scanned scope.
	ViewTarget View = "target"
	// ViewOverview summarizes per-template usage and overall stats.
	ViewOverview View = "overview"
	// ViewNonCompliant lists only the pipelines that failed, separating
	// verified failures from ones that could not be fully resolved.
	ViewNonCompliant View = "noncompliant"
)

// ParseView parses a view name.
func ParseView(s string) (View, error) {
	switch strings.ToLower(s) {
	case "target", "":
		return ViewTarget, nil
	case "overview":
		return ViewOverview, nil
	case "noncompliant", "non-compliant":
		return ViewNonCompliant, nil
	}
	return "", fmt.Errorf("unknown output view %q (valid: target, overview, noncompliant)", s)
}

// Report is the renderable scan outcome.
type Report struct {
	Organization *adoption.OrganizationNode
	Metrics      *adoption.Metrics
}

// Renderer writes reports to one destination in one format.
type Renderer struct {
	out    io.Writer
	format Format
}

// NewRenderer creates a renderer.
func NewRenderer(out io.Writer, format Format) *Renderer {
	return &Renderer{out: out, format: format}
}

// Render writes the requested view of the report.
func (r *Renderer) Render(view View, rep Report) error {
	switch view {
	case ViewOverview:
		return r.renderOverview(rep)
	case ViewNonCompliant:
		return r.renderNonCompliant(rep)
	default:
		return r.renderTarget(rep)
	}
}

func (r *Renderer) renderTarget(rep Report) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(r.out, buildOrganizationDoc(rep.Organization))
	case FormatPlain:
		return renderTargetPlain(r.out, rep.Organization)
	default:
		return renderTargetTable(r.out, rep.Organization, r.format == FormatMarkdown)
	}
}

func (r *Renderer) renderOverview(rep Report) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(r.out, buildOverviewDoc(rep))
	case FormatPlain:
		return renderOverviewPlain(r.out, rep)
	default:
		return renderOverviewTable(r.out, rep, r.format == FormatMarkdown)
	}
}

func (r *Renderer) renderNonCompliant(rep Report) error {
	verified, unresolved := collectNonCompliant(rep.Organization)
	switch r.format {
	case FormatJSON:
		return writeJSON(r.out, nonCompliantDoc{NonCompliant: verified, Unresolved: unresolved})
	case FormatPlain:
		return renderNonCompliantPlain(r.out, verified, unresolved)
	default:
		return renderNonCompliantTable(r.out, verified, unresolved, r.format == FormatMarkdown)
	}
}

// verdictWord names a verdict for human-readable output.
func verdictWord(compliant bool) string {
	if compliant {
		return "compliant"
	}
	return "non-compliant"
}
