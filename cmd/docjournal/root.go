package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docjournal/internal/config"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docjournal",
	Short: "Convert documents into Foundry VTT journal modules",
	Long: `docjournal turns a structured document into journal entries for a
Foundry VTT module: one entry per chapter, one page per section, plus a
table of contents entry linking every page.

Supported inputs: Markdown, HTML, DOCX, PDF, plain text, CSV and
pre-parsed JSON/YAML bundles.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file (environment variables override it)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log conversion progress at debug level",
	)

	rootCmd.AddCommand(convertCmd, validateCmd, versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}
