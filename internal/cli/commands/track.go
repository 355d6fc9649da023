// Package commands implements the adotrack subcommands.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/cli/config"
	"github.com/adotrack/adotrack/internal/fetch"
	"github.com/adotrack/adotrack/internal/report"
	"github.com/adotrack/adotrack/internal/resolver"
	"github.com/adotrack/adotrack/internal/scanner"
	"github.com/adotrack/adotrack/internal/track"
)

// NewTrackCommand creates the track command.
func NewTrackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Scan the target scope and report template adoption",
		Long: `Scan the configured target scope (organization, project, repository, or
single pipeline), resolve every pipeline's template references, and report
which pipelines use the tracked templates.`,
		RunE: runTrack,
	}
}

func runTrack(cmd *cobra.Command, _ []string) error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := config.GetLogger(ctx)

	mode, err := adoption.ParseMode(cfg.ComplianceMode)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}
	view, err := report.ParseView(cfg.OutputView)
	if err != nil {
		return err
	}

	client := azdo.NewClient(cfg.Organization, cfg.Token, logger)

	tracked, err := discoverTracked(cmd, cfg, client)
	if err != nil {
		return err
	}

	cache := fetch.New(client, cfg.FetchConcurrency, logger)
	tracker := track.New(client, resolver.New(cache, logger), tracked, logger)

	outcome, err := tracker.Run(ctx, track.Options{
		Organization: cfg.Organization,
		Target: track.Target{
			Project:    cfg.Target.Project,
			Repository: cfg.Target.Repository,
			PipelineID: cfg.Target.PipelineID,
		},
		Mode: mode,
	})
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, cfg.OutputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	renderer := report.NewRenderer(out, format)
	return renderer.Render(view, report.Report{
		Organization: outcome.Organization,
		Metrics:      outcome.Metrics,
	})
}

// discoverTracked scans the source repository for the templates to audit.
func discoverTracked(cmd *cobra.Command, cfg *config.Config, client *azdo.Client) (*adoption.TrackedSet, error) {
	logger := config.GetLogger(cmd.Context())

	src := scanner.Source{
		Project:      cfg.Source.Project,
		Repository:   cfg.Source.Repository,
		Branch:       cfg.Source.Branch,
		TemplatePath: cfg.Source.TemplatePath,
		Directories:  cfg.Source.Directories,
	}
	if src.Project == "" {
		src.Project = cfg.Target.Project
	}

	templates, err := scanner.New(client, logger).Discover(cmd.Context(), src)
	if err != nil {
		return nil, fmt.Errorf("discovering tracked templates: %w", err)
	}
	return adoption.NewTrackedSet(src.Project, src.Repository, templates), nil
}

// openOutput returns the report destination: the given file when set,
// the command's stdout otherwise.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
