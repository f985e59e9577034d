// ABOUTME: Feedback MCP tool handler
// ABOUTME: Implements record_feedback, which logs feedback and folds its learning into the company context
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/engage/feedback"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type FeedbackHandlers struct {
	processor *feedback.Processor
}

func NewFeedbackHandlers(processor *feedback.Processor) *FeedbackHandlers {
	return &FeedbackHandlers{processor: processor}
}

func (h *FeedbackHandlers) RecordFeedback(ctx context.Context, request *mcp.CallToolRequest, input feedback.Input) (*mcp.CallToolResult, feedback.Result, error) {
	if input.RecommendationID == "" {
		return nil, feedback.Result{}, fmt.Errorf("recommendation_id is required")
	}

	res, err := h.processor.Process(ctx, input)
	if err != nil {
		if res != nil {
			return nil, *res, fmt.Errorf("feedback %d logged but not applied: %w", res.FeedbackID, err)
		}
		return nil, feedback.Result{}, fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil, *res, nil
}
