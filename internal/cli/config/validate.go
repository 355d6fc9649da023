package config

import (
	"fmt"

	"github.com/adotrack/adotrack/internal/adoption"
	"github.com/adotrack/adotrack/internal/report"
)

// Validate checks that the configuration can drive a scan.
func (c *Config) Validate() error {
	if c.Organization == "" {
		return fmt.Errorf("organization is required (set it in adotrack.yaml, ADOTRACK_ORGANIZATION, or --organization)")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required (set ADOTRACK_TOKEN or token in adotrack.yaml)")
	}
	if c.Source.Repository == "" {
		return fmt.Errorf("source repository is required (source.repository or --source-repository)")
	}
	if c.Target.PipelineID != 0 && c.Target.Project == "" {
		return fmt.Errorf("target.pipeline_id requires target.project")
	}
	if c.Target.Repository != "" && c.Target.Project == "" {
		return fmt.Errorf("target.repository requires target.project")
	}
	if _, err := adoption.ParseMode(c.ComplianceMode); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.OutputFormat); err != nil {
		return err
	}
	if _, err := report.ParseView(c.OutputView); err != nil {
		return err
	}
	return nil
}
