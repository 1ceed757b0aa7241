// Package cli provides the Cobra commands for the scribe command line tool.
package cli

import (
	"github.com/Caia-Tech/caia-scribe/internal/config"
	"github.com/Caia-Tech/caia-scribe/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile string
	debug   bool
)

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scribe",
		Short: "Convert images of handwritten text into editable text",
		Long: `scribe runs the baseline OCR engine and, when available, the learned
handwriting model on local images and prints the recognized text.

Examples:
  scribe recognize note.png
  scribe recognize --output note.txt note.png
  scribe recognize --json *.jpg`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./scribe.yaml, ./config, /etc/scribe)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRecognizeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	// keep stdout for results
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "pretty"
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
