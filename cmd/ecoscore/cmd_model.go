package main

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/ecoscore/internal/model"
)

func newModelCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Print the status of the configured model artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := c.loadPredictor()
			return printJSON(cmd, struct {
				Dir      string       `json:"dir"`
				Features []string     `json:"features,omitempty"`
				Status   model.Status `json:"status"`
			}{
				Dir:      c.cfg.ModelDir,
				Features: p.FeatureNames(),
				Status:   p.Status(),
			})
		},
	}
}
