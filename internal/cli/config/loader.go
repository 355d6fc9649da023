package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context. Shared with the
// commands package via LoggerKey to avoid an import cycle.
type loggerKey struct{}

// Package-level config file tracking and last loaded config.
var (
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps flag names to config keys. Only listed flags feed the
// config; anything else on the flag set is command-local.
var flagKeys = map[string]string{
	"organization":       "organization",
	"token":              "token",
	"source-project":     "source.project",
	"source-repository":  "source.repository",
	"source-branch":      "source.branch",
	"source-template":    "source.template_path",
	"source-directories": "source.directories",
	"target-project":     "target.project",
	"target-repository":  "target.repository",
	"target-pipeline-id": "target.pipeline_id",
	"mode":               "mode",
	"output":             "output",
	"view":               "view",
	"output-file":        "output_file",
	"fetch-concurrency":  "fetch_concurrency",
	"verbose":            "verbose",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > adotrack.yaml > adotrack.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"adotrack.yaml", "adotrack.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config file
// > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"source.branch":     DefaultBranch,
		"mode":              DefaultMode,
		"output":            DefaultOutput,
		"view":              DefaultView,
		"fetch_concurrency": DefaultFetchConcurrency,
		"verbose":           false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (ADOTRACK_ prefix).
	// Transform: ADOTRACK_SOURCE__REPOSITORY -> source.repository
	if err := k.Load(env.Provider("ADOTRACK_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "ADOTRACK_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into the Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetCurrentConfig returns the most recently loaded configuration, or
// nil before any load.
func GetCurrentConfig() *Config {
	return currentConfig
}

// GetConfigFileUsed returns the path of the config file read by the
// last load, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
