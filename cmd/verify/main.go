package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "verify",
		Short: "🔍 Verify recorded assembly sessions against a reference checklist",
		Long: `verify samples the frames of an assembly video, asks an object detector and a
vision narrator what each frame shows, and turns those noisy per-frame signals into a
per-step completion record for the reference checklist.

Results are persisted next to the run and reused on later invocations, and can be
compared against a golden reference run.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/verify/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("db", "", "run index database (default: $XDG_DATA_HOME/verify/runs.db)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	setDefaults()

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// The run command installs its own interrupt handler so it can explain what was kept.
	ctx, cancel := context.WithCancel(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, userErr.UserMessage)
			if userErr.Err != nil {
				slog.Debug("Command failed", "error", userErr.Err)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("database.path", config.DefaultDatabasePath())
	viper.SetDefault("frames.stride", 8)
	viper.SetDefault("frames.fps", 30.0)
	viper.SetDefault("frames.ffmpeg_path", "ffmpeg")
	viper.SetDefault("detector.threshold", 0.25)
	viper.SetDefault("detector.timeout", "30s")
	viper.SetDefault("narrator.provider", "openai")
	viper.SetDefault("narrator.max_retries", 3)
	viper.SetDefault("narrator.retry_delay", "1s")
	viper.SetDefault("narrator.cache_ttl", "1h")
	viper.SetDefault("narrator.rate_limit", 60)
	viper.SetDefault("engine.preparation_policy", "cumulative")
	viper.SetDefault("engine.order_check", true)
	viper.SetDefault("pipeline.observer_timeout", "60s")
	viper.SetDefault("pipeline.annotate", true)
	viper.SetDefault("sheets.spreadsheet_name", "Assembly Verification")
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in standard locations
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("VERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Set up logging
	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setupLogging() error {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	return common.SetupLogger(level, viper.GetString("logging.format"))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			slog.Info("verify version", "version", version)
		},
	}
}
