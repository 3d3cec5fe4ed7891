package cmd

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shiftcast/internal/forecast"
	"shiftcast/internal/ui"
)

// predictionReport is the JSON output of predict.
type predictionReport struct {
	City        string                   `json:"city"`
	Shift       forecast.Shift           `json:"shift"`
	Partition   forecast.Partition       `json:"partition"`
	Predictions []forecast.PredictionRow `json:"predictions"`
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	flags := &targetFlags{}
	var noCache, refresh bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict shift sales for every location of a city's next shift",
		Example: `  shiftcast predict --city Vancouver --shift AM
  shiftcast predict --city Vancouver --shift PM --format geojson -o vancouver_pm.geojson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.checkFormat(formatTable, formatJSON, formatGeoJSON); err != nil {
				return err
			}

			app, err := buildApp(cmd.Context(), cmd, root, appOptions{noCache: noCache})
			if err != nil {
				return err
			}
			defer app.Close()

			city, shift, err := flags.resolveTarget(cmd.Context(), app.pipeline)
			if err != nil {
				return err
			}

			if refresh && app.cache != nil {
				if err := app.cache.Invalidate(cmd.Context(), city, shift); err != nil {
					app.logger.Warn("failed to drop cached predictions", "city", city, "error", err.Error())
				}
			}

			var rows []forecast.PredictionRow
			err = runWithSpinner("Predicting "+city+" "+string(shift), func() error {
				rows, err = app.pipeline.Predict(cmd.Context(), city, shift)
				return err
			})
			if err != nil {
				return err
			}

			return flags.withOutput(cmd, func(cmd *cobra.Command) error {
				switch flags.format {
				case formatJSON:
					return ui.WriteJSON(cmd.OutOrStdout(), predictionReport{
						City:        city,
						Shift:       shift,
						Partition:   app.pipeline.Partition(),
						Predictions: forecast.ClampForDisplay(rows),
					})
				case formatGeoJSON:
					return ui.WriteJSON(cmd.OutOrStdout(), ui.NewFeatureCollection(city, shift, rows, time.Now()))
				default:
					useColor := flags.output == "" && !color.NoColor
					ui.NewTableRenderer(cmd.OutOrStdout(), useColor).Predictions(city, shift, rows)
					return nil
				}
			})
		},
	}
	flags.register(cmd, "table, json or geojson")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached result and store a fresh one")
	return cmd
}
