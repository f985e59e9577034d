// ABOUTME: Raw entity cache keyed by source, with a TTL chosen per source
// ABOUTME: One content digest per fetched object detects both change and corruption
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/harperreed/engage/snapshot"
)

// Entity sources.
const (
	SourceBrevoCRM           = "brevo_crm"
	SourceBrevoNotes         = "brevo_notes"
	SourceBrevoTasks         = "brevo_tasks"
	SourceBrevoConversations = "brevo_conversations"
	SourceBrevoUsers         = "brevo_users"
	SourceLinkedIn           = "linkedin"
	SourceWebSearch          = "web_search"
)

// DefaultSourceTTLs holds the per-source entity TTLs.
func DefaultSourceTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		SourceBrevoCRM:           15 * time.Minute,
		SourceBrevoNotes:         5 * time.Minute,
		SourceBrevoTasks:         5 * time.Minute,
		SourceBrevoConversations: 5 * time.Minute,
		SourceBrevoUsers:         24 * time.Hour,
		SourceLinkedIn:           24 * time.Hour,
		SourceWebSearch:          24 * time.Hour,
	}
}

// EntityCache stores fetched CRM/LinkedIn/search objects.
type EntityCache struct {
	cache    *Cache
	digester *snapshot.Digester
	ttls     map[string]time.Duration
}

// NewEntityCache wraps a cache built with EntityPolicy. A nil ttls map
// uses DefaultSourceTTLs; unknown sources use the policy default.
func NewEntityCache(c *Cache, digester *snapshot.Digester, ttls map[string]time.Duration) *EntityCache {
	if ttls == nil {
		ttls = DefaultSourceTTLs()
	}
	if digester == nil {
		digester = snapshot.NewDigester(nil)
	}
	return &EntityCache{cache: c, digester: digester, ttls: ttls}
}

// TTL returns the TTL for a source.
func (e *EntityCache) TTL(source string) time.Duration {
	if ttl, ok := e.ttls[source]; ok && ttl > 0 {
		return ttl
	}
	return e.cache.policy.DefaultTTL
}

// Get returns the cached payload. The stored payload is re-digested and
// compared with the recorded content hash, so a damaged payload is never
// Fresh.
func (e *EntityCache) Get(ctx context.Context, source, entityType, entityID string) (LookupResult, json.RawMessage) {
	key := EntityKey(source, entityType, entityID)

	rec, err := e.cache.backend.Get(ctx, key)
	if err != nil || rec == nil {
		return e.cache.Lookup(ctx, key, nil), nil
	}

	payload, err := decodePayload(rec.Artifact)
	if err != nil {
		e.cache.logger.Warn("entity payload undecodable", "key", key, "error", err)
		return e.cache.Lookup(ctx, key, nil), nil
	}
	current, err := e.digester.Digest(DepContentHash, payload)
	if err != nil {
		return e.cache.Lookup(ctx, key, nil), nil
	}

	res := e.cache.Lookup(ctx, key, snapshot.Digests{DepContentHash: current})
	if res.Record == nil {
		return res, nil
	}
	return res, res.Record.Artifact
}

// Changed reports whether freshly fetched data differs from the cached
// copy in any business-relevant field. A missing or expired entry counts
// as changed.
func (e *EntityCache) Changed(ctx context.Context, source, entityType, entityID string, data any) (bool, error) {
	current, err := e.contentDigest(data)
	if err != nil {
		return true, err
	}
	res := e.cache.Lookup(ctx, EntityKey(source, entityType, entityID), snapshot.Digests{DepContentHash: current})
	return res.State != Fresh, nil
}

// Put stores a fetched object under the source's TTL and returns its
// content digest.
func (e *EntityCache) Put(ctx context.Context, source, entityType, entityID string, data any) (snapshot.Digest, error) {
	digest, err := e.contentDigest(data)
	if err != nil {
		return "", err
	}
	e.cache.Store(ctx, EntityKey(source, entityType, entityID), snapshot.Digests{DepContentHash: digest}, nil, data, e.TTL(source))
	return digest, nil
}

// contentDigest hashes data in the same form Get sees after reading the
// stored JSON back, so numbers beyond float64 precision digest identically.
func (e *EntityCache) contentDigest(data any) (snapshot.Digest, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return "", err
	}
	return e.digester.Digest(DepContentHash, payload)
}

func decodePayload(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Cache exposes the underlying cache for sweeps and stats.
func (e *EntityCache) Cache() *Cache {
	return e.cache
}
