package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/diagflow/diagflow/pkg/diagflow/config"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	krokiURL    string
	storagePath string
	verbose     bool

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "diagflow",
	Short: "Render, export and manage diagram sessions",
	Long: `diagflow renders text diagrams (Mermaid, PlantUML, D2, Graphviz and
more) through a Kroki service and manages saved editing sessions.

Quick start:
  diagflow render flow.mmd                 # render to flow.svg
  diagflow export flow.mmd --formats png,pdf
  diagflow sessions list                   # browse saved sessions`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&krokiURL, "kroki-url", "", "Kroki service base URL")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Session database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadApp resolves the effective configuration: file, then environment,
// then explicit flags.
func loadApp() (config.App, error) {
	app, err := config.Load(configPath)
	if err != nil {
		return config.App{}, err
	}
	if krokiURL != "" {
		app.KrokiURL = krokiURL
	}
	if storagePath != "" {
		app.StoragePath = storagePath
	}
	return app, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
