package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adotrack/adotrack/internal/azdo"
	"github.com/adotrack/adotrack/internal/cli/config"
	"github.com/adotrack/adotrack/internal/scanner"
)

// NewTemplatesCommand creates the templates command, which lists the
// templates that a scan would track without running the scan.
func NewTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the templates that would be tracked",
		Long: `Discover and list the template files in the source repository without
scanning any pipelines. Useful for checking the source configuration.`,
		RunE: runTemplates,
	}
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.GetLogger(cmd.Context())
	client := azdo.NewClient(cfg.Organization, cfg.Token, logger)

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
		return err
	}

	for _, t := range templates {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d templates)\n", len(templates))
	return nil
}
