package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"promptpilot/internal/config"
	"promptpilot/internal/logging"
	"promptpilot/internal/provider"
)

var (
	// Global flags
	verbose    bool
	configPath string
	sessionID  string
	language   string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "promptpilot - adaptive LLM request pipeline",
	Long: `promptpilot routes requests through an adaptive pipeline: it plans a
workflow, synthesizes an optimized prompt from session history and
learned insights, executes against an LLM provider with retry and
error recovery, and quality-checks the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.promptpilot/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "Session id for memory and learning")
	rootCmd.PersistentFlags().StringVarP(&language, "language", "l", "", "Language hint for quality checks")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	resolveProvider(cfg)
	if err := logging.Configure(cfg.Logging.Options()); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, nil
}

// resolveProvider consults the environment when the config leaves the
// default mock backend in place, so exported credentials alone are
// enough to select a real provider. An explicit PILOT_PROVIDER=mock
// still wins because detection honors it first.
func resolveProvider(cfg *config.Config) {
	if cfg.Provider.Provider != "" && cfg.Provider.Provider != "mock" {
		return
	}
	s, err := provider.DetectFromEnv()
	if err != nil {
		return
	}
	cfg.Provider.Provider = string(s.Provider)
	cfg.Provider.APIKey = s.APIKey
	if s.Model != "" {
		cfg.Provider.Model = s.Model
	}
}

// buildClients constructs the primary and optional fallback providers.
func buildClients(ctx context.Context, cfg *config.Config) (provider.Client, provider.Client, error) {
	primary, err := provider.New(ctx, provider.Settings{
		Provider: provider.Name(cfg.Provider.Provider),
		APIKey:   cfg.Provider.APIKey,
		Model:    cfg.Provider.Model,
		BaseURL:  cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("primary provider: %w", err)
	}

	var fallback provider.Client
	if fb := cfg.Provider.Fallback; fb != nil {
		fallback, err = provider.New(ctx, provider.Settings{
			Provider: provider.Name(fb.Provider),
			APIKey:   fb.APIKey,
			Model:    fb.Model,
			BaseURL:  fb.BaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("fallback provider: %w", err)
		}
	}
	return primary, fallback, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// exitCode is set by commands that finish cleanly but need a non-zero
// process status, so deferred cleanup and post-run hooks still run.
var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
