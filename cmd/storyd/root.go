package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"storyd/internal/config"
	"storyd/internal/registry"
)

// options holds flag values. Empty values leave the config untouched.
type options struct {
	configPath  string
	addr        string
	logLevel    string
	logFormat   string
	providerURL string
	corsOrigins string
	check       bool
}

func buildRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "storyd",
		Short:         "Short story generation service",
		Long:          "storyd serves short stories from a local language model and falls back to canned stories while the model is loading, slow or failing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("STORYD_CONFIG"), "Path to a yaml, json or toml config file (defaults STORYD_CONFIG)")
	pf.StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8000")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")
	pf.StringVar(&opts.providerURL, "provider-url", "", "Base URL of the llama.cpp server")
	pf.StringVar(&opts.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Print the resolved configuration",
		Example: "  storyd config --config storyd.yaml\n  storyd config --check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(opts, os.Getenv)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg, opts.check)
		},
	}
	configCmd.Flags().BoolVar(&opts.check, "check", false, "Also report model load prerequisites")

	root.AddCommand(serveCmd, configCmd)
	return root
}

func serve(cmd *cobra.Command, opts *options) error {
	cfg, err := resolveConfig(opts, os.Getenv)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log)
}

// resolveConfig layers defaults, the config file, the env file, STORYD_*
// variables and finally flags.
func resolveConfig(opts *options, getenv func(string) string) (config.Config, error) {
	cfg := config.Defaults()
	if p := strings.TrimSpace(opts.configPath); p != "" {
		var err error
		if cfg, err = config.Load(p); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(getenv)
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if opts.providerURL != "" {
		cfg.ProviderURL = opts.providerURL
	}
	if origins := splitCSV(opts.corsOrigins); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "storyd").Logger(), nil
}

func printConfig(w io.Writer, cfg config.Config, check bool) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if !check {
		return enc.Close()
	}
	mgr := newManager(cfg, zerolog.Nop())
	report := map[string]any{"sanity": mgr.SanityCheck()}
	if cfg.Provider == config.ProviderLlama {
		models, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			return fmt.Errorf("scan models: %w", err)
		}
		report["models"] = models
	}
	if err := enc.Encode(report); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if r := mgr.SanityCheck(); r.Error != "" {
		return fmt.Errorf("sanity check: %s", r.Error)
	}
	return nil
}

// splitCSV splits a comma-separated string, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// contextOrBackground guards against cobra commands executed without a context.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
