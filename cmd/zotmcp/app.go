package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp"
	"pkt.systems/zotmcp/client"
	"pkt.systems/zotmcp/internal/svcfields"
	"pkt.systems/zotmcp/mcp"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("ZOTMCP_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "zotmcp")
	cmd := newRootCommand(baseLogger)
	rootInvocation := invocationTargetsRootCommand(cmd, os.Args[1:])
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			if rootInvocation {
				svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "%s\n", err)
			}
		}
		return 1
	}
	return 0
}

func invocationTargetsRootCommand(root *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return true
	}
	lookupLong := func(name string) *pflag.Flag {
		flag := root.Flags().Lookup(name)
		if flag == nil {
			flag = root.PersistentFlags().Lookup(name)
		}
		return flag
	}
	lookupShort := func(shorthand string) *pflag.Flag {
		flag := root.Flags().ShorthandLookup(shorthand)
		if flag == nil {
			flag = root.PersistentFlags().ShorthandLookup(shorthand)
		}
		return flag
	}
	remainingHasSubcommand := func(rest []string) bool {
		for _, tok := range rest {
			if !isSubcommandToken(root, tok) {
				continue
			}
			return true
		}
		return false
	}
	for i := 0; i < len(args); {
		arg := args[i]
		if arg == "--" {
			return true
		}
		if strings.HasPrefix(arg, "--") && arg != "--" {
			if eq := strings.IndexByte(arg, '='); eq >= 0 {
				i++
				continue
			}
			name := strings.TrimPrefix(arg, "--")
			flag := lookupLong(name)
			if flag == nil {
				return !remainingHasSubcommand(args[i+1:])
			}
			i++
			if flag.NoOptDefVal == "" && i < len(args) {
				i++
			}
			continue
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			sh := strings.TrimPrefix(arg, "-")
			consumeNext := false
			for idx, ch := range sh {
				flag := lookupShort(string(ch))
				if flag == nil {
					return !remainingHasSubcommand(args[i+1:])
				}
				if flag.NoOptDefVal == "" {
					if idx == len(sh)-1 {
						consumeNext = true
					}
					break
				}
			}
			i++
			if consumeNext && i < len(args) {
				i++
			}
			continue
		}
		return !isSubcommandToken(root, arg)
	}
	return true
}

func isSubcommandToken(root *cobra.Command, token string) bool {
	for _, sub := range root.Commands() {
		if token == sub.Name() {
			return true
		}
		for _, alias := range sub.Aliases {
			if token == alias {
				return true
			}
		}
	}
	return false
}

func humanizeBytes(n int64) string {
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString("config"))
	explicit := cfgPath != ""

	if cfgPath == "" {
		if dir, err := zotmcp.DefaultConfigDir(); err == nil {
			candidate := filepath.Join(dir, zotmcp.DefaultConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				cfgPath = candidate
			}
		}
	}

	if cfgPath == "" {
		return "", nil
	}

	expanded, err := expandPath(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}

	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(p) == 1 {
			p = home
		} else if p[1] == '/' || p[1] == '\\' {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "zotmcp",
		Short:         "zotmcp bridges a Zotero library into MCP tools behind a resilient Web API client",
		SilenceErrors: true,
		Example: `
  # Serve MCP on stdio for an agent configuration (credentials via environment)
  ZOTERO_API_KEY=... ZOTERO_USER_ID=12345 zotmcp

  # Streamable HTTP endpoint with a Prometheus scrape target
  zotmcp --http --listen 127.0.0.1:19350 --metrics-listen 127.0.0.1:19351

  # Point at a self-hosted Zotero-compatible API with verbose logging
  zotmcp --api-base https://zotero.internal.example --log-level debug

  # One-off library search from a shell
  zotmcp search "spin glass" --limit 5 --sort date
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := baseLogger
			cliLogger := svcfields.WithSubsystem(logger, "cli.root")
			ctx := cmd.Context()
			cmd.SilenceUsage = true
			svcfields.WithSubsystem(logger, "server.lifecycle.init").WithLogLevel().Info(
				"welcome to zotmcp",
				"app", "zotmcp",
				"pid", os.Getpid(),
				"uid", os.Getuid(),
				"gid", os.Getgid(),
			)

			configFile, err := loadConfigFile()
			if err != nil {
				return err
			}
			if configFile != "" {
				cliLogger.Info("loaded config file", "path", configFile)
			}

			var cfg mcp.Config
			if err := bindConfig(&cfg); err != nil {
				return err
			}
			logLevel := strings.TrimSpace(viper.GetString("log-level"))
			if logLevel == "" {
				logLevel = "info"
			}
			level, ok := pslog.ParseLevel(logLevel)
			if ok {
				logger = logger.LogLevel(level)
				cliLogger = svcfields.WithSubsystem(logger, "cli.root")
			}

			telemetry, err := zotmcp.SetupTelemetry(ctx, bindTelemetryConfig(), svcfields.WithSubsystem(logger, "telemetry"))
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx); err != nil {
					cliLogger.Warn("telemetry shutdown failed", "error", err)
				}
			}()
			if telemetry != nil && telemetry.Registry != nil {
				cfg.Metrics = client.NewMetrics(telemetry.Registry)
			}

			svc, err := mcp.NewServer(mcp.NewServerRequest{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.StringP("config", "c", "", "path to YAML config file (defaults to $HOME/.zotmcp/"+zotmcp.DefaultConfigFileName+")")
	persistentFlags.String("api-key", "", "Zotero Web API key (or ZOTMCP_API_KEY / ZOTERO_API_KEY)")
	persistentFlags.String("user-id", "", "Zotero user library id (or ZOTMCP_USER_ID / ZOTERO_USER_ID)")
	persistentFlags.String("api-base", zotmcp.DefaultAPIBaseURL, "Zotero Web API origin")
	persistentFlags.Duration("http-timeout", zotmcp.DefaultHTTPTimeout, "timeout per upstream API call")
	persistentFlags.Duration("upload-http-timeout", zotmcp.DefaultUploadHTTPTimeout, "timeout for the attachment byte transfer")
	persistentFlags.Int("retry-max-attempts", zotmcp.DefaultRetryMaxAttempts, "total outbound attempts per logical call")
	persistentFlags.Duration("retry-base-delay", zotmcp.DefaultRetryBaseDelay, "initial backoff between retries")
	persistentFlags.Duration("retry-max-delay", zotmcp.DefaultRetryMaxDelay, "backoff ceiling, also clamps Retry-After hints")
	persistentFlags.Bool("read-cache", true, "serve idempotent reads from the in-memory cache")
	persistentFlags.Duration("read-cache-ttl", zotmcp.DefaultReadCacheTTL, "read cache entry lifetime")
	persistentFlags.Int("read-cache-max", zotmcp.DefaultReadCacheMaxEntries, "read cache capacity before oldest-first eviction")
	uploadMaxDefault := humanizeBytes(zotmcp.DefaultUploadMaxBytes)
	persistentFlags.String("upload-max-bytes", uploadMaxDefault, "maximum attachment payload size")
	persistentFlags.String("user-agent", "", "override the upstream User-Agent header")
	persistentFlags.String("log-level", "info", "minimum log level (trace|debug|info|warn|error)")

	flags := cmd.Flags()
	flags.Bool("http", false, "serve streamable HTTP instead of stdio")
	flags.String("listen", zotmcp.DefaultListen, "listen address for --http")
	flags.String("mcp-path", zotmcp.DefaultMCPPath, "HTTP path serving the MCP endpoint")
	flags.String("metrics-listen", zotmcp.DefaultMetricsListen, "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("pprof-listen", zotmcp.DefaultPprofListen, "pprof listen address (debug/pprof endpoints; empty disables)")
	flags.Bool("enable-profiling-metrics", false, "enable Go runtime profiling metrics on the Prometheus endpoint")
	flags.String("otlp-endpoint", "", "OTLP collector endpoint (e.g. grpc://localhost:4317)")

	bindFlag := func(name string) {
		flag := flags.Lookup(name)
		if flag == nil {
			flag = persistentFlags.Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ZOTMCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	names := []string{
		"config",
		"api-key", "user-id", "api-base",
		"http-timeout", "upload-http-timeout",
		"retry-max-attempts", "retry-base-delay", "retry-max-delay",
		"read-cache", "read-cache-ttl", "read-cache-max",
		"upload-max-bytes", "user-agent", "log-level",
		"http", "listen", "mcp-path",
		"metrics-listen", "pprof-listen", "enable-profiling-metrics", "otlp-endpoint",
	}
	for _, name := range names {
		bindFlag(name)
	}

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newSearchCommand(baseLogger))
	cmd.AddCommand(newGetCommand(baseLogger))
	cmd.AddCommand(newCollectionsCommand(baseLogger))
	cmd.AddCommand(newCreateCommand(baseLogger))
	cmd.AddCommand(newAttachCommand(baseLogger))

	return cmd
}

func bindConfig(cfg *mcp.Config) error {
	cfg.APIKey = zotmcp.ResolveAPIKey(viper.GetString("api-key"))
	cfg.UserID = zotmcp.ResolveUserID(viper.GetString("user-id"))
	cfg.BaseURL = strings.TrimSpace(viper.GetString("api-base"))
	cfg.HTTPTimeout = viper.GetDuration("http-timeout")
	cfg.UploadHTTPTimeout = viper.GetDuration("upload-http-timeout")
	cfg.MaxAttempts = viper.GetInt("retry-max-attempts")
	cfg.BaseDelay = viper.GetDuration("retry-base-delay")
	cfg.MaxDelay = viper.GetDuration("retry-max-delay")
	cfg.DisableReadCache = !viper.GetBool("read-cache")
	cfg.CacheTTL = viper.GetDuration("read-cache-ttl")
	cfg.CacheMaxEntries = viper.GetInt("read-cache-max")
	if raw := strings.TrimSpace(viper.GetString("upload-max-bytes")); raw != "" {
		size, err := humanize.ParseBytes(raw)
		if err != nil {
			return fmt.Errorf("parse upload-max-bytes: %w", err)
		}
		cfg.UploadMaxBytes = int64(size)
	}
	cfg.UserAgent = strings.TrimSpace(viper.GetString("user-agent"))
	cfg.HTTP = viper.GetBool("http")
	cfg.Listen = viper.GetString("listen")
	cfg.MCPPath = viper.GetString("mcp-path")
	return nil
}

func bindTelemetryConfig() zotmcp.TelemetryConfig {
	return zotmcp.TelemetryConfig{
		OTLPEndpoint:     viper.GetString("otlp-endpoint"),
		MetricsListen:    viper.GetString("metrics-listen"),
		PprofListen:      viper.GetString("pprof-listen"),
		ProfilingMetrics: viper.GetBool("enable-profiling-metrics"),
	}
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
