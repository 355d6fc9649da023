package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/pipeline"
)

func sampleReport() Report {
	org := &adoption.OrganizationNode{
		Name: "acme",
		Projects: []*adoption.ProjectNode{
			{
				Name: "alpha",
				Repositories: []*adoption.RepositoryNode{
					{
						Name: "app",
						Pipelines: []*adoption.PipelineNode{
							{
								ID:      1,
								Name:    "ci",
								Path:    "azure-pipelines.yml",
								Matched: true,
								Usage:   "extend",
								Matches: []adoption.MatchedTemplate{
									{TemplatePath: "templates/base.yml", Usage: pipeline.UsageExtend},
								},
							},
							{ID: 2, Name: "nightly", Path: "nightly.yml"},
							{
								ID:         3,
								Name:       "release",
								Path:       "release.yml",
								Unresolved: []string{"alpha/app:missing.yml@main: template file not found"},
							},
						},
					},
				},
			},
		},
	}
	adoption.Aggregate(org, adoption.ModeMajority)

	metrics := adoption.NewMetrics(adoption.ModeMajority)
	metrics.AddUsage("templates/base.yml", "alpha", "app", "ci")
	metrics.ProcessingTime = 42 * time.Millisecond

	return Report{Organization: org, Metrics: metrics}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"plain":    FormatPlain,
		"table":    FormatTable,
		"":         FormatTable,
		"json":     FormatJSON,
		"md":       FormatMarkdown,
		"Markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestParseView(t *testing.T) {
	for input, want := range map[string]View{
		"target":        ViewTarget,
		"":              ViewTarget,
		"overview":      ViewOverview,
		"noncompliant":  ViewNonCompliant,
		"non-compliant": ViewNonCompliant,
	} {
		got, err := ParseView(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseView("summary")
	require.Error(t, err)
}

func TestRenderTargetJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatJSON)
	require.NoError(t, r.Render(ViewTarget, sampleReport()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "acme", doc["name"])
	// One repository at 1/3 compliant fails majority, so the single
	// project and the organization both aggregate to 0/1.
	stats := doc["adoptionStats"].(map[string]any)
	assert.Equal(t, float64(0), stats["compliantCount"])
	assert.Equal(t, float64(1), stats["totalCount"])
	assert.Equal(t, 0.0, stats["rate"])

	projects := doc["projects"].([]any)
	require.Len(t, projects, 1)
	repo := projects[0].(map[string]any)["repositories"].([]any)[0].(map[string]any)

	repoStats := repo["adoptionStats"].(map[string]any)
	assert.Equal(t, float64(1), repoStats["compliantCount"])
	assert.Equal(t, float64(3), repoStats["totalCount"])
	assert.Equal(t, 33.33, repoStats["rate"])

	pipelines := repo["pipelines"].([]any)
	require.Len(t, pipelines, 3)
	ci := pipelines[0].(map[string]any)
	assert.Equal(t, "ci", ci["name"])
	assert.Equal(t, true, ci["compliant"])
	match := ci["matches"].([]any)[0].(map[string]any)
	assert.Equal(t, "templates/base.yml", match["templatePath"])
	assert.Equal(t, "extend", match["usageType"])
}

func TestRenderOverviewJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatJSON)
	require.NoError(t, r.Render(ViewOverview, sampleReport()))

	var doc overviewDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "majority", doc.ComplianceMode)
	require.Len(t, doc.Templates, 1)
	assert.Equal(t, "templates/base.yml", doc.Templates[0].TemplatePath)
	assert.Equal(t, 1, doc.Templates[0].PipelineCount)
}

func TestRenderNonCompliantSplitsUnresolved(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatJSON)
	require.NoError(t, r.Render(ViewNonCompliant, sampleReport()))

	var doc nonCompliantDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	require.Len(t, doc.NonCompliant, 1)
	assert.Equal(t, "nightly", doc.NonCompliant[0].Pipeline)

	require.Len(t, doc.Unresolved, 1)
	assert.Equal(t, "release", doc.Unresolved[0].Pipeline)
	require.Len(t, doc.Unresolved[0].Unresolved, 1)
}

func TestRenderTargetPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatPlain)
	require.NoError(t, r.Render(ViewTarget, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "organization acme")
	assert.Contains(t, out, "pipeline ci: compliant (extend: templates/base.yml)")
	assert.Contains(t, out, "pipeline nightly: non-compliant")
	assert.Contains(t, out, "[1 unresolved]")
}

func TestRenderTargetTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTable)
	require.NoError(t, r.Render(ViewTarget, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "PIPELINE")
	assert.Contains(t, out, "ci")
	assert.Contains(t, out, "templates/base.yml")
}

func TestRenderTargetMarkdown(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatMarkdown)
	require.NoError(t, r.Render(ViewTarget, sampleReport()))

	lines := strings.Split(buf.String(), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "|"), "markdown output is a pipe table")
}

func TestRenderNonCompliantEmptyScope(t *testing.T) {
	rep := sampleReport()
	for _, p := range rep.Organization.Projects[0].Repositories[0].Pipelines {
		p.Matched = true
		p.Unresolved = nil
	}

	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTable)
	require.NoError(t, r.Render(ViewNonCompliant, rep))
	assert.Contains(t, buf.String(), "no non-compliant pipelines")
}
