// ABOUTME: Default prompt composer and a generator that shells out to an external command
// ABOUTME: Templates receive the snapshot, context files and the rendered change report
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"text/template"
)

// DefaultSummaryTemplate is used when a request carries no template.
const DefaultSummaryTemplate = `Summarize the current state of this {{.Snapshot.PrimaryType}} for a sales rep.
{{if .ChangesText}}
{{.ChangesText}}
Focus on what changed since the previous summary.
{{end}}
## Data
{{json .Snapshot}}
`

// DefaultRecommendTemplate is used when a request carries no template.
const DefaultRecommendTemplate = `Recommend next actions for deal {{.Hints.DealID}}.
Reply with a single JSON object matching the ActionRecommendations schema.
Every message must be ready to send as written: no placeholders.
{{if .CompanyContext}}
## Company Context
{{.CompanyContext}}
{{end}}{{if .CampaignContext}}
## Campaign Context
{{.CampaignContext}}
{{end}}{{if .Summary}}
## Deal Summary
{{.Summary}}
{{end}}{{if .ChangesText}}
{{.ChangesText}}
{{end}}
## Data
{{json .Snapshot}}
`

// TemplateComposer renders PromptInput.Template with text/template,
// falling back to the defaults above.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, in PromptInput) (string, error) {
	text := in.Template
	if strings.TrimSpace(text) == "" {
		if in.Kind == KindSummary {
			text = DefaultSummaryTemplate
		} else {
			text = DefaultRecommendTemplate
		}
	}

	tmpl, err := template.New(in.Kind).Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			data, err := json.MarshalIndent(v, "", "  ")
			return string(data), err
		},
	}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", in.Kind, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render %s template: %w", in.Kind, err)
	}
	return buf.String(), nil
}

// CommandGenerator pipes the prompt to an external command on stdin and
// returns its stdout, e.g. Name "llm" with Args ["-m", "some-model"].
type CommandGenerator struct {
	Name string
	Args []string
}

// ParseCommand splits a command line on whitespace.
func ParseCommand(line string) (*CommandGenerator, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty generator command", ErrMissingDependency)
	}
	return &CommandGenerator{Name: fields[0], Args: fields[1:]}, nil
}

func (g *CommandGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, g.Name, g.Args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", g.Name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
