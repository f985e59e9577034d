// ABOUTME: Recommendation validation MCP tool handler
// ABOUTME: Implements validate_recommendations over the tiered parser and the soft audit
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/validate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type RecommendationHandlers struct {
	parser *parser.Parser
}

func NewRecommendationHandlers(p *parser.Parser) *RecommendationHandlers {
	if p == nil {
		p = parser.New(parser.Options{})
	}
	return &RecommendationHandlers{parser: p}
}

type ValidateRecommendationsInput struct {
	Response    string `json:"response" jsonschema:"Raw generator output containing an ActionRecommendations JSON object (required)"`
	DealID      string `json:"deal_id,omitempty" jsonschema:"Deal id to use when the response omits one"`
	DataVersion string `json:"data_version,omitempty" jsonschema:"Data version to record when the response omits one"`
}

type ValidateRecommendationsOutput struct {
	Success         bool               `json:"success"`
	Tier            string             `json:"tier"`
	// Recommendations is the validated *models.ActionRecommendations. The
	// action payload union has no static schema.
	Recommendations any                `json:"recommendations,omitempty"`
	DealID          string             `json:"deal_id,omitempty"`
	TotalActions    int                `json:"total_actions"`
	ReadyActions    int                `json:"ready_actions"`
	Warnings        []validate.Warning `json:"warnings,omitempty"`
	Attempts        []string           `json:"attempts,omitempty"`
	Snippet         string             `json:"raw_snippet,omitempty"`
	DumpPath        string             `json:"dump_path,omitempty"`
}

// ValidateRecommendations reports a total parse failure in the output
// rather than as a tool error, so the caller can see every attempt.
func (h *RecommendationHandlers) ValidateRecommendations(_ context.Context, request *mcp.CallToolRequest, input ValidateRecommendationsInput) (*mcp.CallToolResult, ValidateRecommendationsOutput, error) {
	if strings.TrimSpace(input.Response) == "" {
		return nil, ValidateRecommendationsOutput{}, fmt.Errorf("response is required")
	}

	outcome, err := h.parser.Parse(input.Response, parser.Hints{DealID: input.DealID, DataVersion: input.DataVersion})
	var total *parser.TotalFailureError
	if err != nil && !errors.As(err, &total) {
		return nil, ValidateRecommendationsOutput{}, fmt.Errorf("failed to parse response: %w", err)
	}

	out := ValidateRecommendationsOutput{
		Success:  outcome.Success,
		Tier:     outcome.TierUsed.String(),
		Warnings: outcome.Warnings,
		Snippet:  outcome.RawSnippet,
		DumpPath: outcome.DumpPath,
	}
	for _, a := range outcome.Attempts {
		out.Attempts = append(out.Attempts, a.String())
	}
	if outcome.Data != nil {
		out.Recommendations = outcome.Data
		out.DealID = outcome.Data.DealID
		out.TotalActions = outcome.Data.TotalActions()
		out.ReadyActions = len(outcome.Data.ReadyActions())
	}

	return nil, out, nil
}
