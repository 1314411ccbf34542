package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/ecoscore/internal/prediction"
)

func newQuickCommand(c *cli) *cobra.Command {
	var (
		input string
		date  string
	)

	cmd := &cobra.Command{
		Use:   "quick",
		Short: "Score a signal file with the configured model",
		Long: `Score raw signals without touching the database, exactly like the
POST /api/predictions/quick endpoint. Nothing is stored.`,
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

			svc := prediction.NewService(c.loadPredictor(), prediction.Stores{}, prediction.Options{
				Clock: func() time.Time { return ref },
			})
			out, err := svc.QuickPredict(cmd.Context(), signals)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Signal file (JSON or YAML); - reads stdin")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default: today, UTC)")

	return cmd
}
