package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/adotrack/adotrack/internal/adoption"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func emit(t table.Writer, markdown bool) {
	if markdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

func formatStats(s adoption.Stats) string {
	return fmt.Sprintf("%s (%.2f%%)", s.String(), s.Percent())
}

func matchPaths(matches []adoption.MatchedTemplate) string {
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.TemplatePath
	}
	return strings.Join(paths, ", ")
}

func renderTargetPlain(w io.Writer, org *adoption.OrganizationNode) error {
	_, _ = fmt.Fprintf(w, "organization %s: %s projects compliant, %s\n",
		org.Name, org.Stats.String(), verdictWord(org.Verdict))
	for _, project := range org.Projects {
		_, _ = fmt.Fprintf(w, "  project %s: %s repositories compliant (%.2f%%), %s\n",
			project.Name, project.Stats.String(), project.Stats.Percent(), verdictWord(project.Verdict))
		for _, repo := range project.Repositories {
			_, _ = fmt.Fprintf(w, "    repository %s: %s pipelines compliant (%.2f%%), %s\n",
				repo.Name, repo.Stats.String(), repo.Stats.Percent(), verdictWord(repo.Verdict))
			for _, pipe := range repo.Pipelines {
				line := fmt.Sprintf("      pipeline %s: %s", pipe.Name, verdictWord(pipe.Compliant()))
				if pipe.Compliant() {
					line += fmt.Sprintf(" (%s: %s)", pipe.Usage, matchPaths(pipe.Matches))
				}
				if len(pipe.Unresolved) > 0 {
					line += fmt.Sprintf(" [%d unresolved]", len(pipe.Unresolved))
				}
				_, _ = fmt.Fprintln(w, line)
			}
		}
	}
	return nil
}

func renderTargetTable(w io.Writer, org *adoption.OrganizationNode, markdown bool) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"Project", "Repository", "Pipeline", "Verdict", "Usage", "Templates"})

	for _, project := range org.Projects {
		for _, repo := range project.Repositories {
			for _, pipe := range repo.Pipelines {
				usage := pipe.Usage
				if !pipe.Compliant() {
					usage = ""
				}
				t.AppendRow(table.Row{
					project.Name, repo.Name, pipe.Name,
					verdictWord(pipe.Compliant()), usage, matchPaths(pipe.Matches),
				})
			}
		}
	}
	emit(t, markdown)

	_, _ = fmt.Fprintf(w, "organization %s: %s projects compliant, %s\n",
		org.Name, org.Stats.String(), verdictWord(org.Verdict))
	return nil
}

func renderOverviewPlain(w io.Writer, rep Report) error {
	m := rep.Metrics
	_, _ = fmt.Fprintf(w, "compliance mode: %s\n", m.Mode)
	_, _ = fmt.Fprintf(w, "organization %s: %s, %s\n",
		rep.Organization.Name, formatStats(rep.Organization.Stats), verdictWord(rep.Organization.Verdict))
	_, _ = fmt.Fprintf(w, "processing time: %s\n", m.ProcessingTime)
	for _, tmpl := range m.Templates() {
		_, _ = fmt.Fprintf(w, "  %s: %d uses across %d projects, %d repositories, %d pipelines\n",
			tmpl, m.UsageCount(tmpl), m.ProjectCount(tmpl), m.RepositoryCount(tmpl), m.PipelineCount(tmpl))
	}
	return nil
}

func renderOverviewTable(w io.Writer, rep Report, markdown bool) error {
	m := rep.Metrics
	t := newTable(w)
	t.AppendHeader(table.Row{"Template", "Uses", "Projects", "Repositories", "Pipelines"})
	for _, tmpl := range m.Templates() {
		t.AppendRow(table.Row{
			tmpl, m.UsageCount(tmpl), m.ProjectCount(tmpl), m.RepositoryCount(tmpl), m.PipelineCount(tmpl),
		})
	}
	emit(t, markdown)

	_, _ = fmt.Fprintf(w, "mode %s, organization %s: %s, %s (took %s)\n",
		m.Mode, rep.Organization.Name, formatStats(rep.Organization.Stats),
		verdictWord(rep.Organization.Verdict), m.ProcessingTime)
	return nil
}

func renderNonCompliantPlain(w io.Writer, verified, unresolved []nonCompliantEntry) error {
	if len(verified) == 0 && len(unresolved) == 0 {
		_, _ = fmt.Fprintln(w, "no non-compliant pipelines")
		return nil
	}
	for _, e := range verified {
		_, _ = fmt.Fprintf(w, "%s/%s: %s\n", e.Project, e.Repository, e.Pipeline)
	}
	if len(unresolved) > 0 {
		_, _ = fmt.Fprintln(w, "\nnot fully resolved (verdict unverified):")
		for _, e := range unresolved {
			_, _ = fmt.Fprintf(w, "%s/%s: %s\n", e.Project, e.Repository, e.Pipeline)
			for _, ref := range e.Unresolved {
				_, _ = fmt.Fprintf(w, "    %s\n", ref)
			}
		}
	}
	return nil
}

func renderNonCompliantTable(w io.Writer, verified, unresolved []nonCompliantEntry, markdown bool) error {
	if len(verified) == 0 && len(unresolved) == 0 {
		_, _ = fmt.Fprintln(w, "no non-compliant pipelines")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Project", "Repository", "Pipeline", "Status"})
	for _, e := range verified {
		t.AppendRow(table.Row{e.Project, e.Repository, e.Pipeline, "non-compliant"})
	}
	for _, e := range unresolved {
		t.AppendRow(table.Row{e.Project, e.Repository, e.Pipeline,
			fmt.Sprintf("unverified (%d unresolved)", len(e.Unresolved))})
	}
	emit(t, markdown)
	return nil
}
