package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/server"
)

func newServeCmd(app *appState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start background loading and serve the status feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = app.cfg.Serve.Addr
			}

			runtime := app.app()
			runtime.Start(cmd.Context())

			app.log().Info("starting status server", zap.String("addr", addr))
			return server.New(runtime, app.log()).ListenAndServe(cmd.Context(), addr)
		},
	}

	bindLoggingFlags(cmd, app)
	bindConfigFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindProFlag(cmd, app)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for the status server (default from config)")

	return cmd
}
