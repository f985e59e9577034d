// ABOUTME: Content-addressed cache: reuse an artifact only when every tracked digest matches
// ABOUTME: Lookups classify as Fresh, Stale or Miss; storage failures degrade to Miss or no-op
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperreed/engage/metrics"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/snapshot"
)

// State classifies a lookup.
type State int

const (
	Miss State = iota
	Stale
	Fresh
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// StaleReason says why a found record was not Fresh.
type StaleReason string

const (
	ReasonExpired    StaleReason = "expired"
	ReasonDependency StaleReason = "dependency_changed"
)

// LookupResult is the outcome of Lookup. Record is nil on Miss. On Stale,
// Record carries the prior artifact and snapshot for diffing.
type LookupResult struct {
	State   State
	Record  *models.CacheRecord
	Reason  StaleReason
	Changed []string
	Age     time.Duration
}

// Artifact decodes the cached artifact into v.
func (r LookupResult) Artifact(v any) error {
	if r.Record == nil {
		return fmt.Errorf("no cached artifact")
	}
	return json.Unmarshal(r.Record.Artifact, v)
}

// PriorSnapshot decodes the snapshot stored with the cached artifact.
// It returns nil when none was stored.
func (r LookupResult) PriorSnapshot() (snapshot.Snapshot, error) {
	if r.Record == nil || len(r.Record.Snapshot) == 0 {
		return nil, nil
	}
	return snapshot.Parse(r.Record.Snapshot)
}

// Cache applies one Policy over a Backend.
type Cache struct {
	policy  Policy
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(policy Policy, backend Backend, opts ...Option) (*Cache, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	c := &Cache{
		policy:  policy,
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("policy", policy.Name)
	return c, nil
}

func (c *Cache) Policy() Policy {
	return c.policy
}

// Lookup classifies the record under key against the current digests.
// A tracked name missing from current is compared as the empty digest.
func (c *Cache) Lookup(ctx context.Context, key string, current snapshot.Digests) LookupResult {
	rec, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache lookup failed, treating as miss", "key", key, "error", err)
		return c.record(LookupResult{State: Miss})
	}
	if rec == nil {
		c.logger.Debug("cache miss", "key", key)
		return c.record(LookupResult{State: Miss})
	}

	now := c.now()
	res := LookupResult{Record: rec, Age: rec.Age(now)}

	for _, name := range c.policy.Dependencies {
		if rec.Dependencies[name] != string(current[name]) {
			res.Changed = append(res.Changed, name)
		}
	}

	switch {
	case len(res.Changed) > 0:
		res.State = Stale
		res.Reason = ReasonDependency
		c.logger.Info("cache stale", "key", key, "changed", res.Changed)
	case rec.Expired(now):
		res.State = Stale
		res.Reason = ReasonExpired
		c.logger.Info("cache stale", "key", key, "reason", ReasonExpired, "age", res.Age.Round(time.Second))
	default:
		res.State = Fresh
		c.logger.Debug("cache fresh", "key", key, "age", res.Age.Round(time.Second))
	}
	return c.record(res)
}

func (c *Cache) record(res LookupResult) LookupResult {
	metrics.CacheLookups.WithLabelValues(c.policy.Name, res.State.String()).Inc()
	return res
}

// Store replaces the record under key. A non-positive ttl uses the
// policy default. Failures are logged and reported as false.
func (c *Cache) Store(ctx context.Context, key string, deps snapshot.Digests, snap any, artifact any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.policy.DefaultTTL
	}

	artifactJSON, err := json.Marshal(artifact)
	if err != nil {
		c.logger.Error("cache store skipped: artifact not encodable", "key", key, "error", err)
		metrics.CacheStoreErrors.WithLabelValues(c.policy.Name).Inc()
		return false
	}

	var snapshotJSON []byte
	if snap != nil {
		if snapshotJSON, err = json.Marshal(snap); err != nil {
			c.logger.Error("cache store skipped: snapshot not encodable", "key", key, "error", err)
			metrics.CacheStoreErrors.WithLabelValues(c.policy.Name).Inc()
			return false
		}
	}

	stored := make(map[string]string, len(deps))
	for _, name := range c.policy.Columns() {
		stored[name] = string(deps[name])
	}

	now := c.now().UTC()
	rec := &models.CacheRecord{
		Key:          key,
		Dependencies: stored,
		Snapshot:     snapshotJSON,
		Artifact:     artifactJSON,
		GeneratedAt:  now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := c.backend.Put(ctx, rec); err != nil {
		c.logger.Error("cache store failed", "key", key, "error", err)
		metrics.CacheStoreErrors.WithLabelValues(c.policy.Name).Inc()
		return false
	}

	c.logger.Debug("cache stored", "key", key, "ttl", ttl)
	return true
}

// Invalidate drops one key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// SweepExpired deletes rows with expires_at <= now.
func (c *Cache) SweepExpired(ctx context.Context) (int, error) {
	n, err := c.backend.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", c.policy.Name, err)
	}
	metrics.CacheSwept.WithLabelValues(c.policy.Name).Add(float64(n))
	if n > 0 {
		c.logger.Info("swept expired cache rows", "removed", n)
	}
	return n, nil
}

// Clear deletes every row of this policy.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.backend.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", c.policy.Name, err)
	}
	return n, nil
}

func (c *Cache) Stats(ctx context.Context) (*models.CacheStats, error) {
	stats, err := c.backend.Stats(ctx, c.now())
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", c.policy.Name, err)
	}
	stats.Policy = c.policy.Name
	return stats, nil
}
