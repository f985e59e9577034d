// ABOUTME: context command group for the company context markdown file
// ABOUTME: show prints the file or one section; update edits a section and records the change
package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
	"github.com/spf13/cobra"
)

const updateTypeManual = "manual"

func contextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show or edit the company context",
	}
	cmd.AddCommand(contextShowCmd(a), contextUpdateCmd(a))
	return cmd
}

func contextShowCmd(a *app) *cobra.Command {
	var section string
	var list bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the company context, one section, or the section list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := companyctx.Load(a.cfg.CompanyContextFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case list:
				fmt.Fprintf(out, "%s %s (v%s)\n", paint(titleStyle, "Company context:"), cc.Path, cc.Version)
				names := make([]string, 0, len(cc.Sections))
				for name := range cc.Sections {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  - %s\n", name)
				}
			case section != "":
				body, ok := cc.Sections[section]
				if !ok {
					return fmt.Errorf("section not found: %s", section)
				}
				fmt.Fprintln(out, paint(headerStyle, section))
				fmt.Fprintln(out, strings.TrimSpace(body))
			default:
				fmt.Fprint(out, cc.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "Print only this section")
	cmd.Flags().BoolVar(&list, "list", false, "List section names and the version")
	return cmd
}

func contextUpdateCmd(a *app) *cobra.Command {
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "update SECTION [FILE]",
		Short: "Replace or append to a section (content from FILE or stdin)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			content = strings.TrimSpace(content)
			if content == "" {
				return fmt.Errorf("no content given for %s", args[0])
			}

			if _, err := companyctx.Load(a.cfg.CompanyContextFile); err != nil {
				return err
			}
			upd, err := companyctx.UpdateSection(a.cfg.CompanyContextFile, args[0], content, appendMode, time.Now())
			if err != nil {
				return err
			}

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				if err := db.LogContextUpdate(rt.DB, &models.ContextUpdate{
					UpdateType: updateTypeManual,
					Section:    upd.Section,
					Content:    content,
					AppliedAt:  time.Now().UTC(),
				}); err != nil {
					return fmt.Errorf("failed to log context update: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s: v%s → v%s\n", paint(okStyle, "✓ Updated"), upd.Section, upd.OldVersion, upd.NewVersion)
				if upd.Diff != "" {
					fmt.Fprint(out, paint(mutedStyle, upd.Diff))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "Append instead of replacing the section")
	return cmd
}
