// ABOUTME: MCP server subcommand
// ABOUTME: Starts the engage MCP server on stdio for Claude Desktop and other MCP clients
package cli

import (
	"github.com/harperreed/engage/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				a.logger.Info("starting engage MCP server", "db", rt.Config.CacheDB)
				server := NewMCPServer(rt, cmd.Root().Version)
				return server.Run(cmd.Context(), &mcp.StdioTransport{})
			})
		},
	}
}

// NewMCPServer registers every engage tool, resource and prompt.
func NewMCPServer(rt *Runtime, version string) *mcp.Server {
	diffHandlers := handlers.NewDiffHandlers(rt.Differ)
	recommendationHandlers := handlers.NewRecommendationHandlers(rt.Parser)
	cacheHandlers := handlers.NewCacheHandlers(rt.Caches()...)
	feedbackHandlers := handlers.NewFeedbackHandlers(rt.Feedback)
	resourceHandlers := handlers.NewResourceHandlers(rt.DB, rt.Config.CompanyContextFile)
	promptHandlers := handlers.NewPromptHandlers(rt.Config.CompanyContextFile, nil)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "engage",
		Version: version,
	}, nil)

	// Register tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff_snapshots",
		Description: "Compare two snapshots and report changed primary fields, added/removed/modified related entities and interaction deltas",
	}, diffHandlers.DiffSnapshots)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_recommendations",
		Description: "Extract ActionRecommendations JSON from a raw model response, validate every action and return soft quality warnings",
	}, recommendationHandlers.ValidateRecommendations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Show total, valid and expired entry counts for the entity, summary and recommendation caches",
	}, cacheHandlers.CacheStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sweep_cache",
		Description: "Delete expired cache entries",
	}, cacheHandlers.SweepCache)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_feedback",
		Description: "Record feedback on a recommendation and add the learning to the company context",
	}, feedbackHandlers.RecordFeedback)

	for _, r := range resourceHandlers.Resources() {
		server.AddResource(r, resourceHandlers.ReadResource)
	}
	for _, p := range promptHandlers.Prompts() {
		server.AddPrompt(p, promptHandlers.GetPrompt)
	}

	return server
}
