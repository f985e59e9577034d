// ABOUTME: MCP resource handlers for the company context and feedback log
// ABOUTME: Provides read-only access to engage data via engage:// URIs
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ContextURI  = "engage://context"
	FeedbackURI = "engage://feedback"

	recentFeedbackLimit = 50
)

type ResourceHandlers struct {
	db          *sql.DB
	contextFile string
}

func NewResourceHandlers(database *sql.DB, contextFile string) *ResourceHandlers {
	return &ResourceHandlers{db: database, contextFile: contextFile}
}

// Resources lists what ReadResource serves.
func (h *ResourceHandlers) Resources() []*mcp.Resource {
	return []*mcp.Resource{
		{
			URI:         ContextURI,
			Name:        "company-context",
			Description: "Company context markdown used to ground recommendations, including learned feedback",
			MIMEType:    "text/markdown",
		},
		{
			URI:         FeedbackURI,
			Name:        "feedback",
			Description: "Recent recommendation feedback, context updates and totals",
			MIMEType:    "application/json",
		},
	}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "engage://") {
		return nil, fmt.Errorf("invalid URI scheme: expected engage://")
	}

	switch uri {
	case ContextURI:
		return h.readContext()
	case FeedbackURI:
		return h.readFeedback()
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readContext() (*mcp.ReadResourceResult, error) {
	cc, err := companyctx.Load(h.contextFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load company context: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      ContextURI,
			MIMEType: "text/markdown",
			Text:     cc.Content,
		},
	}}, nil
}

type feedbackResource struct {
	Stats   *models.FeedbackStats  `json:"stats"`
	Recent  []models.FeedbackEntry `json:"recent"`
	Updates []models.ContextUpdate `json:"context_updates"`
}

func (h *ResourceHandlers) readFeedback() (*mcp.ReadResourceResult, error) {
	stats, err := db.FeedbackStats(h.db)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feedback stats: %w", err)
	}
	recent, err := db.ListFeedback(h.db, "", recentFeedbackLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feedback: %w", err)
	}
	updates, err := db.ListContextUpdates(h.db, recentFeedbackLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch context updates: %w", err)
	}

	data, err := json.MarshalIndent(feedbackResource{Stats: stats, Recent: recent, Updates: updates}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      FeedbackURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
