package cmd

import (
	"github.com/spf13/cobra"

	"shiftcast/internal/ui"
)

func newCitiesCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "cities",
		Short: "List the cities present in the shift sales table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatTable && format != formatJSON {
				return (&targetFlags{format: format}).checkFormat(formatTable, formatJSON)
			}

			app, err := buildApp(cmd.Context(), cmd, root, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			cities, err := app.pipeline.Cities(cmd.Context())
			if err != nil {
				return err
			}

			if format == formatJSON {
				if cities == nil {
					cities = []string{}
				}
				return ui.WriteJSON(cmd.OutOrStdout(), map[string][]string{"cities": cities})
			}
			ui.NewTableRenderer(cmd.OutOrStdout(), false).Cities(cities)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table or json")
	return cmd
}
