package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"nixlsp/internal/config"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/version"
)

var (
	// workspaceFlag overrides the workspace root, which defaults to the
	// current directory.
	workspaceFlag string
	verboseCount  int
	quietFlag     bool
	logFileFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "nixlsp",
	Short: "nixlsp - Nix language server",
	Long: `nixlsp is a language server for the Nix expression language.

It offers go-to-definition through let bindings, attribute sets, lambda
arguments and simple imports, completion and hover from a documentation
knowledge base, scoped renames, document links, selection ranges and
parse diagnostics.

Run without a subcommand it serves the protocol on stdin and stdout.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.SetVersionTemplate("nixlsp version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "",
		"Workspace root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v",
		"Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress logging")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "",
		"Write logs to this file instead of the nixlsp log directory")
}

// workspaceRoot returns the absolute workspace root.
func workspaceRoot() (string, error) {
	root := workspaceFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		root = wd
	}
	return filepath.Abs(root)
}

// loadConfig loads and validates the workspace configuration.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// cliLevel returns the level forced by -v or -q, or nil when neither was
// given.
func cliLevel() *slog.Level {
	if verboseCount == 0 && !quietFlag {
		return nil
	}
	level := slogutil.LevelFromVerbosity(verboseCount, quietFlag)
	return &level
}

// newLogger returns the logger for a subsystem and a function releasing
// its files. --log-file wins over the configured log directory.
func newLogger(cfg *config.Config, subsystem string) (*slog.Logger, func(), error) {
	if logFileFlag != "" {
		level := slogutil.LevelFromString(cfg.Logging.Level)
		if l := cliLevel(); l != nil {
			level = *l
		}
		logger, closer, err := slogutil.NewFileLogger(logFileFlag, cfg.Logging.Format, level, cfg.Logging.MaxSize, cfg.Logging.MaxBackups)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return logger.With("subsystem", subsystem), func() { _ = closer.Close() }, nil
	}

	factory := slogutil.NewLoggerFactory(cfg, cliLevel())
	return factory.Logger(subsystem), func() { _ = factory.Close() }, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
