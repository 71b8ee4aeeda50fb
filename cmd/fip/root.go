package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fip/internal/config"
	"fip/internal/paths"
	"fip/internal/slogutil"
	"fip/internal/version"
)

var (
	rootFlag    string
	outputFlag  string
	verboseFlag int
	quietFlag   bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "fip",
	Short: "fip - Finding Intelligence Pipeline",
	Long: `fip aggregates findings from independent analyzers, caches them across runs,
correlates them into compound insights, learns from feedback, ranks them into an
action plan and generates fixes that can be applied safely with a backup.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("fip version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "human", "Output format: human, json")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress logs")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable coloured output")
}

// repoRoot returns the absolute repository root.
func repoRoot() (string, error) {
	root := rootFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// loadConfig loads the configuration of root. A config error is fatal;
// commands never run on a configuration they cannot trust.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger from flags and configuration and, when
// file logging is enabled, tees it into the rotating log file.
func newLogger(root string, cfg *config.Config) (*slog.Logger, io.Closer) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verboseFlag > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verboseFlag, quietFlag)
	}
	console := slogutil.NewFormattedLogger(os.Stderr, level, cfg.Logging.Format, !color.NoColor)
	if !cfg.Logging.File {
		return console, nil
	}

	fileLogger, closer, err := slogutil.NewRotatingFileLogger(
		paths.For(root).Log(),
		slogutil.LevelFromString(cfg.Logging.Level),
		cfg.Logging.MaxSize,
		cfg.Logging.MaxBackups,
	)
	if err != nil {
		console.Warn("File logging disabled", "error", err.Error())
		return console, nil
	}
	return slog.New(slogutil.NewTeeHandler(console.Handler(), fileLogger.Handler())), closer
}
