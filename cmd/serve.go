package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shiftcast/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions, features and GeoJSON over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cmd, root, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(app.pipeline, server.Options{
				Logger:  app.logger,
				Metrics: app.metrics,
				Version: Version,
				Ping:    app.ping,
				Details: app.healthDetails,
			})
			return srv.Run(ctx, app.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}
