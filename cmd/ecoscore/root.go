package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/ecoscore/internal/config"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/internal/observability"
)

var version = "dev"

// cli carries the flags shared by every subcommand.
type cli struct {
	cfg        *config.Config
	configPath string
	modelDir   string
	debug      bool
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "ecoscore",
		Short: "Inspect eco-score features and score signals offline",
		Long: `ecoscore runs the eco-score feature builder and model without a database.

Signals are read from a JSON or YAML object mapping feature or category
names to scalar values.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Settings file (default: data directory settings)")
	cmd.PersistentFlags().StringVar(&c.modelDir, "model-dir", "", "Directory holding the model artifacts (overrides settings)")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if c.debug {
			level = "debug"
		}
		observability.InitLogger(observability.LogConfig{Output: cmd.ErrOrStderr(), Level: level})

		path := c.configPath
		if path == "" {
			path = config.SettingsPath()
		}
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if c.modelDir != "" {
			cfg.ModelDir = c.modelDir
		}
		c.cfg = cfg
		return nil
	}

	cmd.AddCommand(newFeaturesCommand(c))
	cmd.AddCommand(newQuickCommand(c))
	cmd.AddCommand(newModelCommand(c))
	cmd.AddCommand(newTokenCommand(c))

	return cmd
}

// loadPredictor loads the configured model artifacts. The returned predictor
// may be unloaded; its Status carries the reason.
func (c *cli) loadPredictor() *model.Predictor {
	return model.Load(c.cfg.ModelDir, model.LoadOptions{
		ModelFile:        c.cfg.ModelFile,
		FeatureNamesFile: c.cfg.FeatureNamesFile,
	})
}
