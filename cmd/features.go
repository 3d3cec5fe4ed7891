package cmd

import (
	"github.com/spf13/cobra"

	"shiftcast/internal/forecast"
	"shiftcast/internal/ui"
)

func newFeaturesCmd(root *rootOptions) *cobra.Command {
	flags := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the model inputs for a city's next shift without calling the model",
		Example: `  shiftcast features --city Vancouver --shift AM
  shiftcast features --city Vancouver --shift PM --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.checkFormat(formatTable, formatJSON); err != nil {
				return err
			}

			app, err := buildApp(cmd.Context(), cmd, root, appOptions{noCache: true})
			if err != nil {
				return err
			}
			defer app.Close()

			city, shift, err := flags.resolveTarget(cmd.Context(), app.pipeline)
			if err != nil {
				return err
			}

			var rows []forecast.FeatureRow
			err = runWithSpinner("Building features for "+city, func() error {
				rows, err = app.pipeline.Features(cmd.Context(), city, shift)
				return err
			})
			if err != nil {
				return err
			}

			return flags.withOutput(cmd, func(cmd *cobra.Command) error {
				if flags.format == formatJSON {
					return ui.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
						"city":     city,
						"shift":    shift,
						"columns":  forecast.FeatureColumns,
						"features": rows,
					})
				}
				ui.NewTableRenderer(cmd.OutOrStdout(), false).Features(rows)
				return nil
			})
		},
	}
	flags.register(cmd, "table or json")
	return cmd
}
