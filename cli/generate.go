// ABOUTME: summarize and recommend commands that run the caching pipeline on a snapshot file
// ABOUTME: Generation shells out to the configured generator command with the prompt on stdin
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/pipeline"
	"github.com/harperreed/engage/snapshot"
	"github.com/harperreed/engage/validate"
	"github.com/spf13/cobra"
)

type generateFlags struct {
	generator    string
	templateFile string
	force        bool
	asJSON       bool
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.generator, "generator", "", "Generator command (default: generator_command from config)")
	cmd.Flags().StringVar(&f.templateFile, "template", "", "Prompt template file (text/template)")
	cmd.Flags().BoolVar(&f.force, "force", false, "Regenerate even when the cached artifact is fresh")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the artifact as JSON")
}

func (f *generateFlags) generatorFor(a *app) (pipeline.Generator, error) {
	line := f.generator
	if line == "" {
		line = a.cfg.GeneratorCommand
	}
	if line == "" {
		return nil, fmt.Errorf("no generator configured: set generator_command or pass --generator")
	}
	return pipeline.ParseCommand(line)
}

func (f *generateFlags) template() (string, error) {
	return readOptionalFile(f.templateFile)
}

func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func summarizeCmd(a *app) *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "summarize SNAPSHOT",
		Short: "Summarize a snapshot, reusing the cached summary while its inputs are unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			tmpl, err := flags.template()
			if err != nil {
				return err
			}
			gen, err := flags.generatorFor(a)
			if err != nil {
				return err
			}

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				p, err := rt.Pipeline(gen)
				if err != nil {
					return err
				}
				res, err := p.Summarize(cmd.Context(), pipeline.SummaryRequest{
					Snapshot:     snap,
					Template:     tmpl,
					ForceRefresh: flags.force,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if flags.asJSON {
					return writeJSON(out, res.Artifact)
				}
				printProvenance(out, res.FromCache, res.Trigger, res.Age)
				fmt.Fprintln(out, res.Artifact.Text)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func recommendCmd(a *app) *cobra.Command {
	var (
		flags        generateFlags
		dealID       string
		summaryFile  string
		campaignFile string
	)

	cmd := &cobra.Command{
		Use:   "recommend SNAPSHOT",
		Short: "Recommend executable next actions for a deal snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			tmpl, err := flags.template()
			if err != nil {
				return err
			}
			summary, err := readOptionalFile(summaryFile)
			if err != nil {
				return err
			}
			campaign, err := readOptionalFile(campaignFile)
			if err != nil {
				return err
			}
			cc, err := companyctx.Load(a.cfg.CompanyContextFile)
			if err != nil {
				return err
			}
			gen, err := flags.generatorFor(a)
			if err != nil {
				return err
			}

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				p, err := rt.Pipeline(gen)
				if err != nil {
					return err
				}
				res, err := p.Recommend(cmd.Context(), pipeline.RecommendRequest{
					DealID:          dealID,
					Snapshot:        snap,
					Summary:         summary,
					Template:        tmpl,
					CompanyContext:  cc.Content,
					CampaignContext: campaign,
					ForceRefresh:    flags.force,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if flags.asJSON {
					return writeJSON(out, res.Artifact)
				}
				recs := res.Artifact
				printProvenance(out, res.FromCache, res.Trigger, res.Age)
				fmt.Fprintf(out, "%s %s (%s) recommendation %s\n", paint(titleStyle, "Deal:"), recs.DealName, recs.DealID, recs.RecommendationID)
				fmt.Fprintln(out, recs.ExecutiveSummary)
				for _, action := range recs.AllActions() {
					fmt.Fprintf(out, "  [%s] %-8s %s  %s\n", action.Priority, action.Channel(), action.Action.Recipient(), paint(mutedStyle, action.RecommendedTiming))
				}
				printWarnings(out, res.Warnings)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&dealID, "deal-id", "", "Deal id (default: the snapshot's primary record id)")
	cmd.Flags().StringVar(&summaryFile, "summary", "", "File holding the current deal summary")
	cmd.Flags().StringVar(&campaignFile, "campaign", "", "File holding campaign context")
	return cmd
}

func printProvenance(out io.Writer, fromCache bool, trigger string, age time.Duration) {
	if fromCache {
		fmt.Fprintln(out, paint(mutedStyle, fmt.Sprintf("cached, %s old", age.Round(time.Second))))
		return
	}
	fmt.Fprintln(out, paint(mutedStyle, "generated ("+trigger+")"))
}

func printWarnings(out io.Writer, warnings []validate.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(out, paint(headerStyle, "Warnings"))
	for _, w := range warnings {
		fmt.Fprintf(out, "  %s %s\n", paint(warnStyle, "!"), w)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
