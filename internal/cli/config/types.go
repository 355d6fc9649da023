// Package config provides configuration management for the adotrack CLI.
//
// Configuration is layered: defaults, then an adotrack.yaml file, then
// ADOTRACK_* environment variables, then command-line flags.
package config

// SourceConfig identifies where the tracked templates live.
type SourceConfig struct {
	Project      string   `koanf:"project"`
	Repository   string   `koanf:"repository"`
	Branch       string   `koanf:"branch"`
	TemplatePath string   `koanf:"template_path"`
	Directories  []string `koanf:"directories"`
}

// TargetConfig narrows the scan scope. All fields are optional; empty
// fields widen the scope, up to the whole organization.
type TargetConfig struct {
	Project    string `koanf:"project"`
	Repository string `koanf:"repository"`
	PipelineID int    `koanf:"pipeline_id"`
}

// Config holds all CLI configuration options.
type Config struct {
	Organization string       `koanf:"organization"`
	Token        string       `koanf:"token"`
	Source       SourceConfig `koanf:"source"`
	Target       TargetConfig `koanf:"target"`

	ComplianceMode   string `koanf:"mode"`
	OutputFormat     string `koanf:"output"`
	OutputView       string `koanf:"view"`
	OutputFile       string `koanf:"output_file"`
	FetchConcurrency int    `koanf:"fetch_concurrency"`
	Verbose          bool   `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultBranch           = "main"
	DefaultMode             = "any"
	DefaultOutput           = "table"
	DefaultView             = "target"
	DefaultFetchConcurrency = 10
)
