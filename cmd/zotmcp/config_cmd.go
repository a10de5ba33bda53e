package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/zotmcp"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage zotmcp configuration files",
	}
	cmd.AddCommand(newConfigGenCommand())
	return cmd
}

func newConfigGenCommand() *cobra.Command {
	var outPath string
	var force bool
	var stdout bool
	defaultOutput := "$HOME/.zotmcp/" + zotmcp.DefaultConfigFileName
	if dir, err := zotmcp.DefaultConfigDir(); err == nil {
		defaultOutput = filepath.Join(dir, zotmcp.DefaultConfigFileName)
	}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a default zotmcp configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout && outPath != "" {
				return fmt.Errorf("--stdout and --out are mutually exclusive")
			}
			if outPath == "" {
				dir, err := zotmcp.DefaultConfigDir()
				if err != nil {
					return fmt.Errorf("resolve config dir: %w", err)
				}
				outPath = filepath.Join(dir, zotmcp.DefaultConfigFileName)
			}

			data, err := defaultConfigYAML()
			if err != nil {
				return err
			}

			if stdout {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat config file: %w", err)
				}
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", fmt.Sprintf("output path for generated config (defaults to %s)", defaultOutput))
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the target file if it already exists")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the config to stdout instead of writing a file")
	return cmd
}

type configDefaults struct {
	APIKey                 string `yaml:"api-key"`
	UserID                 string `yaml:"user-id"`
	APIBase                string `yaml:"api-base"`
	HTTPTimeout            string `yaml:"http-timeout"`
	UploadHTTPTimeout      string `yaml:"upload-http-timeout"`
	RetryMaxAttempts       int    `yaml:"retry-max-attempts"`
	RetryBaseDelay         string `yaml:"retry-base-delay"`
	RetryMaxDelay          string `yaml:"retry-max-delay"`
	ReadCache              bool   `yaml:"read-cache"`
	ReadCacheTTL           string `yaml:"read-cache-ttl"`
	ReadCacheMax           int    `yaml:"read-cache-max"`
	UploadMaxBytes         string `yaml:"upload-max-bytes"`
	UserAgent              string `yaml:"user-agent"`
	HTTP                   bool   `yaml:"http"`
	Listen                 string `yaml:"listen"`
	MCPPath                string `yaml:"mcp-path"`
	MetricsListen          string `yaml:"metrics-listen"`
	PprofListen            string `yaml:"pprof-listen"`
	EnableProfilingMetrics bool   `yaml:"enable-profiling-metrics"`
	OTLPEndpoint           string `yaml:"otlp-endpoint"`
	LogLevel               string `yaml:"log-level"`
}

func defaultConfigYAML(overrides ...func(*configDefaults)) ([]byte, error) {
	defaults := configDefaults{
		APIKey:                 "",
		UserID:                 "",
		APIBase:                zotmcp.DefaultAPIBaseURL,
		HTTPTimeout:            zotmcp.DefaultHTTPTimeout.String(),
		UploadHTTPTimeout:      zotmcp.DefaultUploadHTTPTimeout.String(),
		RetryMaxAttempts:       zotmcp.DefaultRetryMaxAttempts,
		RetryBaseDelay:         zotmcp.DefaultRetryBaseDelay.String(),
		RetryMaxDelay:          zotmcp.DefaultRetryMaxDelay.String(),
		ReadCache:              true,
		ReadCacheTTL:           zotmcp.DefaultReadCacheTTL.String(),
		ReadCacheMax:           zotmcp.DefaultReadCacheMaxEntries,
		UploadMaxBytes:         humanizeBytes(zotmcp.DefaultUploadMaxBytes),
		UserAgent:              "",
		HTTP:                   false,
		Listen:                 zotmcp.DefaultListen,
		MCPPath:                zotmcp.DefaultMCPPath,
		MetricsListen:          zotmcp.DefaultMetricsListen,
		PprofListen:            zotmcp.DefaultPprofListen,
		EnableProfilingMetrics: false,
		OTLPEndpoint:           "",
		LogLevel:               "info",
	}
	for _, fn := range overrides {
		if fn != nil {
			fn(&defaults)
		}
	}

	out, err := yaml.Marshal(&defaults)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
