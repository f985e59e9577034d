// ABOUTME: Cache maintenance MCP tool handlers
// ABOUTME: Implements cache_stats and sweep_cache across the configured cache policies
package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CacheHandlers struct {
	caches map[string]*cache.Cache
}

// NewCacheHandlers indexes caches by policy name.
func NewCacheHandlers(caches ...*cache.Cache) *CacheHandlers {
	h := &CacheHandlers{caches: make(map[string]*cache.Cache, len(caches))}
	for _, c := range caches {
		h.caches[c.Policy().Name] = c
	}
	return h
}

// selected returns the caches named by policy, or all of them in name
// order when policy is empty.
func (h *CacheHandlers) selected(policy string) ([]*cache.Cache, error) {
	if policy != "" {
		c, ok := h.caches[policy]
		if !ok {
			return nil, fmt.Errorf("unknown cache policy: %s", policy)
		}
		return []*cache.Cache{c}, nil
	}

	names := make([]string, 0, len(h.caches))
	for name := range h.caches {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*cache.Cache, len(names))
	for i, name := range names {
		out[i] = h.caches[name]
	}
	return out, nil
}

type CacheStatsInput struct {
	Policy string `json:"policy,omitempty" jsonschema:"Cache policy (entity_cache, summary_cache, recommendation_cache); all when empty"`
}

type CacheStatOutput struct {
	Policy  string `json:"policy"`
	Total   int    `json:"total"`
	Valid   int    `json:"valid"`
	Expired int    `json:"expired"`
	Oldest  string `json:"oldest,omitempty"`
	Newest  string `json:"newest,omitempty"`
}

type CacheStatsOutput struct {
	Stats []CacheStatOutput `json:"stats"`
}

func (h *CacheHandlers) CacheStats(ctx context.Context, request *mcp.CallToolRequest, input CacheStatsInput) (*mcp.CallToolResult, CacheStatsOutput, error) {
	caches, err := h.selected(input.Policy)
	if err != nil {
		return nil, CacheStatsOutput{}, err
	}

	out := CacheStatsOutput{Stats: make([]CacheStatOutput, 0, len(caches))}
	for _, c := range caches {
		stats, err := c.Stats(ctx)
		if err != nil {
			return nil, CacheStatsOutput{}, fmt.Errorf("failed to read cache stats: %w", err)
		}
		out.Stats = append(out.Stats, statsToOutput(stats))
	}
	return nil, out, nil
}

func statsToOutput(stats *models.CacheStats) CacheStatOutput {
	out := CacheStatOutput{
		Policy:  stats.Policy,
		Total:   stats.Total,
		Valid:   stats.Valid,
		Expired: stats.Expired,
	}
	if stats.Oldest != nil {
		out.Oldest = stats.Oldest.Format("2006-01-02T15:04:05Z07:00")
	}
	if stats.Newest != nil {
		out.Newest = stats.Newest.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

type SweepCacheInput struct {
	Policy string `json:"policy,omitempty" jsonschema:"Cache policy to sweep; all when empty"`
}

type SweepCacheOutput struct {
	Removed map[string]int `json:"removed"`
	Total   int            `json:"total"`
}

func (h *CacheHandlers) SweepCache(ctx context.Context, request *mcp.CallToolRequest, input SweepCacheInput) (*mcp.CallToolResult, SweepCacheOutput, error) {
	caches, err := h.selected(input.Policy)
	if err != nil {
		return nil, SweepCacheOutput{}, err
	}

	out := SweepCacheOutput{Removed: make(map[string]int, len(caches))}
	for _, c := range caches {
		n, err := c.SweepExpired(ctx)
		if err != nil {
			return nil, SweepCacheOutput{}, fmt.Errorf("failed to sweep cache: %w", err)
		}
		out.Removed[c.Policy().Name] = n
		out.Total += n
	}
	return nil, out, nil
}
