// ABOUTME: MCP prompt handlers that render the summary and recommendation prompts
// ABOUTME: Lets an MCP client run generation itself while reusing engage's templates and context
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/pipeline"
	"github.com/harperreed/engage/snapshot"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	PromptRecommendActions = "recommend-actions"
	PromptSummarize        = "summarize"
)

type PromptHandlers struct {
	contextFile string
	composer    pipeline.Composer
}

func NewPromptHandlers(contextFile string, composer pipeline.Composer) *PromptHandlers {
	if composer == nil {
		composer = pipeline.TemplateComposer{}
	}
	return &PromptHandlers{contextFile: contextFile, composer: composer}
}

// Prompts lists what GetPrompt serves.
func (h *PromptHandlers) Prompts() []*mcp.Prompt {
	snapshotArg := &mcp.PromptArgument{
		Name:        "snapshot",
		Description: "Snapshot JSON for the deal or contact",
		Required:    true,
	}
	return []*mcp.Prompt{
		{
			Name:        PromptRecommendActions,
			Description: "Recommend executable next actions for a deal, grounded in the company context",
			Arguments: []*mcp.PromptArgument{
				snapshotArg,
				{Name: "summary", Description: "Current deal summary"},
				{Name: "campaign_context", Description: "Campaign notes to weigh in"},
			},
		},
		{
			Name:        PromptSummarize,
			Description: "Summarize the current state of a deal or contact",
			Arguments:   []*mcp.PromptArgument{snapshotArg},
		},
	}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments

	raw, ok := arguments["snapshot"]
	if !ok || raw == "" {
		return nil, fmt.Errorf("snapshot is required")
	}
	snap, err := snapshot.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	in := pipeline.PromptInput{Snapshot: snap}
	var description string
	switch name {
	case PromptRecommendActions:
		cc, err := companyctx.Load(h.contextFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load company context: %w", err)
		}
		in.Kind = pipeline.KindRecommendation
		in.CompanyContext = cc.Content
		in.Summary = arguments["summary"]
		in.CampaignContext = arguments["campaign_context"]
		in.Hints = parser.Hints{DealID: snap.PrimaryID()}
		description = fmt.Sprintf("Action recommendations for deal %s", snap.PrimaryID())
	case PromptSummarize:
		in.Kind = pipeline.KindSummary
		description = fmt.Sprintf("Summary of %s %s", snap.PrimaryType(), snap.PrimaryID())
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}

	text, err := h.composer.Compose(ctx, in)
	if err != nil {
		return nil, err
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: text,
				},
			},
		},
	}, nil
}
