// ABOUTME: Cache policies: which dependency digests gate freshness and for how long
// ABOUTME: Defines the entity, summary and recommendation policies and their logical keys
package cache

import (
	"errors"
	"fmt"
	"time"
)

// Dependency names. They double as column names in the SQLite backend.
const (
	DepContentHash         = "content_hash"
	DepSnapshotHash        = "snapshot_hash"
	DepPromptHash          = "prompt_hash"
	DepCompanyContextHash  = "company_context_hash"
	DepCampaignContextHash = "campaign_context_hash"
	DepSummaryHash         = "summary_hash"
)

// Policy names. They double as table names in the SQLite backend.
const (
	PolicyEntity         = "entity_cache"
	PolicySummary        = "summary_cache"
	PolicyRecommendation = "recommendation_cache"
)

const (
	DefaultSummaryTTL        = 24 * time.Hour
	DefaultRecommendationTTL = 60 * time.Minute
	DefaultEntityTTL         = 60 * time.Minute
)

var ErrInvalidPolicy = errors.New("invalid cache policy")

// Policy describes one cache instance. Every name in Dependencies must
// match for a record to be Fresh. Names in Recorded are stored for
// diagnostics but never compared.
type Policy struct {
	Name         string
	Dependencies []string
	Recorded     []string
	DefaultTTL   time.Duration
}

// Columns returns every stored dependency name, tracked first.
func (p Policy) Columns() []string {
	cols := make([]string, 0, len(p.Dependencies)+len(p.Recorded))
	cols = append(cols, p.Dependencies...)
	return append(cols, p.Recorded...)
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPolicy)
	}
	if len(p.Dependencies) == 0 {
		return fmt.Errorf("%w: %s tracks no dependencies", ErrInvalidPolicy, p.Name)
	}
	seen := make(map[string]bool)
	for _, c := range p.Columns() {
		if seen[c] {
			return fmt.Errorf("%w: %s lists %s twice", ErrInvalidPolicy, p.Name, c)
		}
		seen[c] = true
	}
	return nil
}

// Tracks reports whether name gates freshness.
func (p Policy) Tracks(name string) bool {
	for _, d := range p.Dependencies {
		if d == name {
			return true
		}
	}
	return false
}

// EntityPolicy caches raw fetched objects by one content hash. The TTL
// is usually chosen per source; see EntityCache.
func EntityPolicy(defaultTTL time.Duration) Policy {
	return Policy{
		Name:         PolicyEntity,
		Dependencies: []string{DepContentHash},
		DefaultTTL:   orDefault(defaultTTL, DefaultEntityTTL),
	}
}

// SummaryPolicy caches generated summaries.
func SummaryPolicy(ttl time.Duration) Policy {
	return Policy{
		Name:         PolicySummary,
		Dependencies: []string{DepSnapshotHash, DepPromptHash},
		DefaultTTL:   orDefault(ttl, DefaultSummaryTTL),
	}
}

// RecommendationPolicy caches action recommendations. The summary digest
// is recorded but only gates freshness when trackSummary is set, so that
// a re-worded summary alone does not force new recommendations.
func RecommendationPolicy(ttl time.Duration, trackSummary bool) Policy {
	p := Policy{
		Name: PolicyRecommendation,
		Dependencies: []string{
			DepSnapshotHash,
			DepPromptHash,
			DepCompanyContextHash,
			DepCampaignContextHash,
		},
		DefaultTTL: orDefault(ttl, DefaultRecommendationTTL),
	}
	if trackSummary {
		p.Dependencies = append(p.Dependencies, DepSummaryHash)
	} else {
		p.Recorded = []string{DepSummaryHash}
	}
	return p
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// EntityKey is the logical key of a fetched object.
func EntityKey(source, entityType, entityID string) string {
	return fmt.Sprintf("entity:%s:%s:%s", source, entityType, entityID)
}

// SummaryKey is the logical key of a summary.
func SummaryKey(primaryType, primaryID string) string {
	return fmt.Sprintf("summary:%s:%s", primaryType, primaryID)
}

// RecommendationKey is the logical key of a deal's recommendations.
func RecommendationKey(dealID string) string {
	return "recommendation:deal:" + dealID
}
