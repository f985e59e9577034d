// ABOUTME: parse command running a raw generator response through the tiered parser
// ABOUTME: Exits non-zero when every tier fails, after printing each rejected attempt
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/harperreed/engage/parser"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func parseCmd(a *app) *cobra.Command {
	var (
		dealID      string
		dataVersion string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "parse [FILE]",
		Short: "Parse and validate a raw recommendation response (stdin when FILE is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			p := parser.New(parser.Options{
				MaxCandidates: a.cfg.Parser.MaxCandidates,
				SnippetLength: a.cfg.Parser.SnippetLength,
				Dumper:        parser.NewDirDumper(a.cfg.DebugDir),
				Logger:        a.logger,
			})
			outcome, parseErr := p.Parse(raw, parser.Hints{DealID: dealID, DataVersion: dataVersion})

			out := cmd.OutOrStdout()
			var total *parser.TotalFailureError
			if errors.As(parseErr, &total) {
				fmt.Fprintln(out, paint(errorStyle, "✗ No parsing tier produced a valid recommendation"))
				for _, attempt := range total.Attempts {
					fmt.Fprintf(out, "  - %s\n", attempt)
				}
				if total.DumpPath != "" {
					fmt.Fprintln(out, paint(mutedStyle, "raw response saved to "+total.DumpPath))
				}
				return parseErr
			}
			if parseErr != nil {
				return parseErr
			}

			if asJSON {
				return writeJSON(out, outcome.Data)
			}

			recs := outcome.Data
			fmt.Fprintf(out, "%s via %s tier\n", paint(okStyle, "✓ Parsed"), outcome.TierUsed)
			fmt.Fprintf(out, "%s %s (%s)\n", paint(titleStyle, "Deal:"), recs.DealName, recs.DealID)
			fmt.Fprintf(out, "Actions: %d P0, %d P1, %d P2 (%d ready)\n",
				len(recs.P0Actions), len(recs.P1Actions), len(recs.P2Actions), len(recs.ReadyActions()))
			for _, action := range recs.AllActions() {
				fmt.Fprintf(out, "  [%s] %-8s %s  %s\n", action.Priority, action.Channel(), action.Action.Recipient(), paint(mutedStyle, string(action.Status)))
			}
			printWarnings(out, outcome.Warnings)
			return nil
		},
	}
	cmd.Flags().StringVar(&dealID, "deal-id", "", "Deal id to use when the response omits one")
	cmd.Flags().StringVar(&dataVersion, "data-version", "", "Data version to record when the response omits one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the validated recommendations as JSON")
	return cmd
}

// readInput reads args[0], or stdin when no file is given and stdin is
// not a terminal.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("no input: pass a FILE or pipe a response on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
