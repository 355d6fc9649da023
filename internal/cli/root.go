// Package cli provides the command-line interface for adotrack.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adotrack/adotrack/internal/cli/commands"
	"github.com/adotrack/adotrack/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adotrack",
		Short: "adotrack - Azure DevOps pipeline template adoption tracker",
		Long: `adotrack audits how widely a set of shared pipeline templates is
adopted across an Azure DevOps organization.

It resolves every pipeline's template references (across files, repositories,
and projects), classifies each pipeline as extending or including a tracked
template, and aggregates compliance bottom-up over repositories, projects,
and the organization.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			ctx := context.WithValue(cmd.Context(), config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./adotrack.yaml)")
	rootCmd.PersistentFlags().String("organization", "", "Azure DevOps organization name")
	rootCmd.PersistentFlags().String("token", "", "Azure DevOps access token (prefer ADOTRACK_TOKEN)")
	rootCmd.PersistentFlags().String("source-project", "", "Project hosting the tracked templates")
	rootCmd.PersistentFlags().String("source-repository", "", "Repository hosting the tracked templates")
	rootCmd.PersistentFlags().String("source-branch", "", "Branch of the source repository (default: main)")
	rootCmd.PersistentFlags().String("source-template", "", "Track a single template path instead of scanning")
	rootCmd.PersistentFlags().StringSlice("source-directories", nil, "Directories to scan for templates (repeatable)")
	rootCmd.PersistentFlags().StringP("target-project", "p", "", "Limit the scan to one project")
	rootCmd.PersistentFlags().StringP("target-repository", "r", "", "Limit the scan to one repository")
	rootCmd.PersistentFlags().Int("target-pipeline-id", 0, "Limit the scan to one pipeline")
	rootCmd.PersistentFlags().StringP("mode", "m", "", "Compliance mode (any|majority|all)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (plain|table|json|markdown)")
	rootCmd.PersistentFlags().String("view", "", "Output view (target|overview|noncompliant)")
	rootCmd.PersistentFlags().String("output-file", "", "Write the report to a file instead of stdout")
	rootCmd.PersistentFlags().Int("fetch-concurrency", 0, "Max concurrent file fetches")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"any", "majority", "all"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"plain", "table", "json", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("view", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"target", "overview", "noncompliant"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewTrackCommand())
	rootCmd.AddCommand(commands.NewTemplatesCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for adotrack.

To load completions:

Bash:
  $ source <(adotrack completion bash)

Zsh:
  $ adotrack completion zsh > "${fpath[1]}/_adotrack"

Fish:
  $ adotrack completion fish | source

PowerShell:
  PS> adotrack completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
