package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chriscorrea/relatos/internal/app"
	"github.com/chriscorrea/relatos/internal/config"
	"github.com/chriscorrea/relatos/internal/logger"

	"github.com/spf13/cobra"
)

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("model") {
		cfg.Model.Path, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format, _ = cmd.Flags().GetString("log-format")
	}
	return cfg, cfg.Validate()
}

// setupLogger configures the default slog logger. One-shot commands only
// log errors unless --debug is set; the server logs at the configured level.
func setupLogger(cmd *cobra.Command, cfg *config.Config, longRunning bool) {
	debug, _ := cmd.Flags().GetBool("debug")

	level := cfg.Logging.Level
	switch {
	case debug:
		level = "debug"
	case !longRunning:
		level = "error"
	}
	logger.Setup(level, cfg.Logging.Format, os.Stderr)
}

// newApp loads configuration, configures logging and builds the App.
func newApp(cmd *cobra.Command, longRunning bool) (*app.App, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	setupLogger(cmd, cfg, longRunning)

	quiet, _ := cmd.Flags().GetBool("quiet")
	a, err := app.New(cfg, app.WithQuiet(quiet), app.WithStderr(cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// signalContext cancels on interrupt or termination for graceful shutdown.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "relatos",
	Short: "Classify student reports into learning-difficulty categories",
	Long: `Relatos classifies short Portuguese reports written by students into one of
six learning-difficulty categories and suggests study strategies for each.

Examples:
  relatos train
  relatos train dados/relatos_rotulados.csv --policy kfold --folds 5
  relatos predict --text "não consigo entender frações"
  relatos predict relato.txt https://escola.example/relato/42
  relatos batch relatos.csv -o relatos_classificados.csv
  relatos serve --addr :8080`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("model", "m", "", "Path to the model artifact (overrides model.path)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress warnings and progress output")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	_ = rootCmd.PersistentFlags().MarkHidden("debug")

	rootCmd.AddCommand(trainCmd, predictCmd, batchCmd, serveCmd, categoriesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
