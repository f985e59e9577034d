// ABOUTME: diff command comparing two snapshot files
// ABOUTME: Prints the prompt-ready change report or the structured diff as JSON
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/harperreed/engage/diff"
	"github.com/harperreed/engage/snapshot"
	"github.com/spf13/cobra"
)

func diffCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two snapshot files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := snapshot.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			updated, err := snapshot.Load(args[1])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[1], err)
			}

			engine := diff.NewEngine(snapshot.NewCanonicalizer(a.cfg.VolatileFields))
			result := engine.Compute(old, updated)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprint(out, diff.Format(result))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured diff as JSON")
	return cmd
}
