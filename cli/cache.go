// ABOUTME: cache command group for inspecting and maintaining the content-addressed caches
// ABOUTME: stats, sweep and clear operate on one policy or all of them
package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/harperreed/engage/cache"
	"github.com/spf13/cobra"
)

func cacheCmd(a *app) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the caches",
	}
	cmd.PersistentFlags().StringVar(&policy, "policy", "", "Cache policy (entity_cache, summary_cache, recommendation_cache); all when empty")

	selected := func(rt *Runtime) ([]*cache.Cache, error) {
		if policy == "" {
			return rt.Caches(), nil
		}
		for _, c := range rt.Caches() {
			if c.Policy().Name == policy {
				return []*cache.Cache{c}, nil
			}
		}
		return nil, fmt.Errorf("unknown cache policy: %s", policy)
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and ages per cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				caches, err := selected(rt)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "POLICY\tTOTAL\tVALID\tEXPIRED\tOLDEST\tNEWEST")
				for _, c := range caches {
					s, err := c.Stats(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n", s.Policy, s.Total, s.Valid, s.Expired, ago(s.Oldest), ago(s.Newest))
				}
				return w.Flush()
			})
		},
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				caches, err := selected(rt)
				if err != nil {
					return err
				}
				for _, c := range caches {
					n, err := c.SweepExpired(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d expired\n", c.Policy().Name, n)
				}
				return nil
			})
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				caches, err := selected(rt)
				if err != nil {
					return err
				}
				for _, c := range caches {
					n, err := c.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: cleared %d\n", c.Policy().Name, n)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(stats, sweep, clearAll)
	return cmd
}

func ago(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return time.Since(*t).Round(time.Second).String() + " ago"
}
