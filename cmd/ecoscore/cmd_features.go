package main

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/ecoscore/internal/features"
)

type featureValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func newFeaturesCommand(c *cli) *cobra.Command {
	var (
		input string
		date  string
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the feature vector built from a signal file",
		Long: `Build the model input from raw signals and print it in model order.

The order comes from the model's feature-name artifact when it loads, and
from the canonical feature list otherwise. With --all the full named feature
map is printed instead of the projected vector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signals, err := readSignals(cmd, input)
			if err != nil {
				return err
			}
			ref, err := parseDate(date)
			if err != nil {
				return err
			}

			var names []string
			if p := c.loadPredictor(); p.IsLoaded() {
				names = p.FeatureNames()
			}
			builder := features.NewBuilder(names)

			if all {
				return printJSON(cmd, builder.Features(signals, ref))
			}

			vector := builder.Prepare(signals, ref)
			out := make([]featureValue, len(vector))
			for i, name := range builder.FeatureNames() {
				out[i] = featureValue{Name: name, Value: vector[i]}
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Signal file (JSON or YAML); - reads stdin")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default: today, UTC)")
	cmd.Flags().BoolVar(&all, "all", false, "Print every named feature instead of the model vector")

	return cmd
}
