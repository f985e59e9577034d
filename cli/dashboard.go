// ABOUTME: dashboard command
// ABOUTME: Renders the terminal overview of caches, feedback and the company context
package cli

import (
	"fmt"

	"github.com/harperreed/engage/viz"
	"github.com/spf13/cobra"
)

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show cache health, feedback totals and the company context version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				stats, err := viz.GenerateDashboardStats(cmd.Context(), rt.DB, rt.Caches(), rt.Config.CompanyContextFile)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), viz.RenderDashboard(stats))
				return nil
			})
		},
	}
}
