// ABOUTME: serve command running the read-only web dashboard
// ABOUTME: Exposes the dashboard, JSON views and /metrics until interrupted
package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/engage/web"
	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web dashboard and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withRuntime(ctx, func(rt *Runtime) error {
				server, err := web.NewServer(rt.DB, rt.Caches(), rt.Config.CompanyContextFile, a.logger.With("component", "web"))
				if err != nil {
					return err
				}
				return server.Start(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	return cmd
}

