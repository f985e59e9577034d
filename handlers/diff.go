// ABOUTME: Snapshot diff MCP tool handler
// ABOUTME: Implements diff_snapshots, returning structured changes plus the prompt-ready report
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/engage/diff"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/snapshot"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type DiffHandlers struct {
	engine *diff.Engine
}

func NewDiffHandlers(engine *diff.Engine) *DiffHandlers {
	if engine == nil {
		engine = diff.NewEngine(nil)
	}
	return &DiffHandlers{engine: engine}
}

type DiffSnapshotsInput struct {
	Old map[string]any `json:"old" jsonschema:"Previous snapshot (primary_type, primary_record, related_entities, interactions)"`
	New map[string]any `json:"new" jsonschema:"Current snapshot with the same layout"`
}

type DiffSnapshotsOutput struct {
	Empty  bool               `json:"empty"`
	Diff   *models.DiffResult `json:"diff"`
	Report string             `json:"report"`
}

func (h *DiffHandlers) DiffSnapshots(_ context.Context, request *mcp.CallToolRequest, input DiffSnapshotsInput) (*mcp.CallToolResult, DiffSnapshotsOutput, error) {
	if input.Old == nil || input.New == nil {
		return nil, DiffSnapshotsOutput{}, fmt.Errorf("old and new snapshots are required")
	}

	result := h.engine.Compute(snapshot.Snapshot(input.Old), snapshot.Snapshot(input.New))
	return nil, DiffSnapshotsOutput{
		Empty:  result.IsEmpty(),
		Diff:   result,
		Report: diff.Format(result),
	}, nil
}
