// ABOUTME: Orchestrates cache lookup, change diffing, generation, parsing and storage
// ABOUTME: Regenerates a summary or recommendation only when a tracked input changed or the TTL lapsed
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/diff"
	"github.com/harperreed/engage/metrics"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/snapshot"
	"github.com/harperreed/engage/validate"
	"golang.org/x/sync/singleflight"
)

// Artifact kinds, used for prompts and metrics.
const (
	KindSummary        = "summary"
	KindRecommendation = "recommendation"
)

var (
	ErrMissingDependency = errors.New("pipeline dependency not configured")
	ErrEmptyGeneration   = errors.New("generator returned an empty response")
)

// Generator turns a prompt into raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// PromptInput is everything a Composer may draw on.
type PromptInput struct {
	Kind            string
	Template        string
	Snapshot        snapshot.Snapshot
	Summary         string
	CompanyContext  string
	CampaignContext string
	// Changes is set when a prior artifact exists; ChangesText is its
	// bounded markdown rendering.
	Changes     *models.DiffResult
	ChangesText string
	Hints       parser.Hints
}

// Composer builds the prompt text.
type Composer interface {
	Compose(ctx context.Context, in PromptInput) (string, error)
}

// Summary is the cached summary artifact.
type Summary struct {
	PrimaryType string    `json:"primary_type"`
	PrimaryID   string    `json:"primary_id"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	DataVersion string    `json:"data_version"`
}

// Result is the outcome of Summarize or Recommend.
type Result[T any] struct {
	Artifact  T
	Warnings  []validate.Warning
	FromCache bool
	Age       time.Duration
	// Diff is set when a stale artifact was regenerated.
	Diff    *models.DiffResult
	Trigger string
}

// SummaryRequest asks for a summary of one snapshot.
type SummaryRequest struct {
	Snapshot     snapshot.Snapshot
	Template     string
	ForceRefresh bool
}

// RecommendRequest asks for recommendations on one deal.
type RecommendRequest struct {
	DealID          string
	Snapshot        snapshot.Snapshot
	Summary         string
	Template        string
	CompanyContext  string
	CampaignContext string
	ForceRefresh    bool
}

// Options wire a Pipeline. Summaries, Recommendations, Composer and
// Generator are required.
type Options struct {
	Summaries       *cache.Cache
	Recommendations *cache.Cache
	Digester        *snapshot.Digester
	Differ          *diff.Engine
	Parser          *parser.Parser
	Composer        Composer
	Generator       Generator
	Logger          *slog.Logger
}

// Pipeline is safe for concurrent use. Concurrent regenerations of the
// same cache key are collapsed into one generator call, run under the
// context of the caller that started it. Every caller receives its own
// shallow copy of the Result and artifact; slices inside them are shared
// and must be treated as read-only.
type Pipeline struct {
	summaries *cache.Cache
	recs      *cache.Cache
	digester  *snapshot.Digester
	differ    *diff.Engine
	parser    *parser.Parser
	composer  Composer
	generator Generator
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Summaries == nil:
		return nil, fmt.Errorf("%w: summary cache", ErrMissingDependency)
	case opts.Recommendations == nil:
		return nil, fmt.Errorf("%w: recommendation cache", ErrMissingDependency)
	case opts.Composer == nil:
		return nil, fmt.Errorf("%w: composer", ErrMissingDependency)
	case opts.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	}

	p := &Pipeline{
		summaries: opts.Summaries,
		recs:      opts.Recommendations,
		digester:  opts.Digester,
		differ:    opts.Differ,
		parser:    opts.Parser,
		composer:  opts.Composer,
		generator: opts.Generator,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.digester == nil {
		p.digester = snapshot.NewDigester(nil)
	}
	if p.differ == nil {
		p.differ = diff.NewEngine(p.digester.Canonicalizer())
	}
	if p.parser == nil {
		p.parser = parser.New(parser.Options{Logger: p.logger})
	}
	return p, nil
}

// SummaryDigests computes the dependency digests for a summary request.
func (p *Pipeline) SummaryDigests(req SummaryRequest) (snapshot.Digests, error) {
	snapDigest, err := p.digester.Digest(cache.DepSnapshotHash, req.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("digest snapshot: %w", err)
	}
	return snapshot.Digests{
		cache.DepSnapshotHash: snapDigest,
		cache.DepPromptHash:   p.digester.Text(cache.DepPromptHash, req.Template),
	}, nil
}

// RecommendDigests computes the dependency digests for a recommendation
// request. Absent optional inputs digest to "".
func (p *Pipeline) RecommendDigests(req RecommendRequest) (snapshot.Digests, error) {
	snapDigest, err := p.digester.Digest(cache.DepSnapshotHash, req.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("digest snapshot: %w", err)
	}
	return snapshot.Digests{
		cache.DepSnapshotHash:        snapDigest,
		cache.DepPromptHash:          p.digester.Text(cache.DepPromptHash, req.Template),
		cache.DepCompanyContextHash:  p.digester.Text(cache.DepCompanyContextHash, req.CompanyContext),
		cache.DepCampaignContextHash: p.digester.Text(cache.DepCampaignContextHash, req.CampaignContext),
		cache.DepSummaryHash:         p.digester.Text(cache.DepSummaryHash, req.Summary),
	}, nil
}

// Summarize returns a cached summary when Fresh, otherwise generates one.
func (p *Pipeline) Summarize(ctx context.Context, req SummaryRequest) (*Result[Summary], error) {
	digests, err := p.SummaryDigests(req)
	if err != nil {
		return nil, err
	}
	primaryType, primaryID := req.Snapshot.PrimaryType(), identity(req.Snapshot, digests[cache.DepSnapshotHash])
	key := cache.SummaryKey(primaryType, primaryID)

	lookup, trigger := p.lookup(ctx, p.summaries, key, digests, req.ForceRefresh)
	if lookup.State == cache.Fresh {
		var s Summary
		if err := lookup.Artifact(&s); err == nil {
			return &Result[Summary]{Artifact: s, FromCache: true, Age: lookup.Age, Trigger: "fresh"}, nil
		}
		p.logger.Warn("cached summary unreadable, regenerating", "key", key)
		trigger = "miss"
	}

	v, err, shared := p.group.Do(KindSummary+"/"+key, func() (any, error) {
		changes, changesText := p.changes(lookup, req.Snapshot)
		prompt, err := p.composer.Compose(ctx, PromptInput{
			Kind:        KindSummary,
			Template:    req.Template,
			Snapshot:    req.Snapshot,
			Changes:     changes,
			ChangesText: changesText,
		})
		if err != nil {
			return nil, fmt.Errorf("compose summary prompt: %w", err)
		}

		metrics.Regenerations.WithLabelValues(KindSummary, trigger).Inc()
		raw, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("generate summary: %w", err)
		}
		text := strings.TrimSpace(raw)
		if text == "" {
			return nil, ErrEmptyGeneration
		}

		s := Summary{
			PrimaryType: primaryType,
			PrimaryID:   primaryID,
			Text:        text,
			GeneratedAt: p.now().UTC(),
			DataVersion: digests[cache.DepSnapshotHash].Short(),
		}
		p.summaries.Store(ctx, key, digests, req.Snapshot, s, 0)
		return &Result[Summary]{Artifact: s, Diff: changes, Trigger: trigger}, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debug("summary regeneration shared", "key", key)
	}
	res := *v.(*Result[Summary])
	return &res, nil
}

// identity keys a snapshot by its primary id. Snapshots without one are
// keyed by their content digest so they never share a row with another
// entity.
func identity(snap snapshot.Snapshot, snapHash snapshot.Digest) string {
	if id, ok := snap.Identity(); ok {
		return id
	}
	return "snapshot-" + snapHash.Short()
}

// Recommend returns cached recommendations when Fresh, otherwise
// generates, parses, validates and stores new ones. A total parse failure
// is returned as *parser.TotalFailureError and nothing is stored.
func (p *Pipeline) Recommend(ctx context.Context, req RecommendRequest) (*Result[*models.ActionRecommendations], error) {
	digests, err := p.RecommendDigests(req)
	if err != nil {
		return nil, err
	}
	if req.DealID == "" {
		req.DealID = identity(req.Snapshot, digests[cache.DepSnapshotHash])
	}
	key := cache.RecommendationKey(req.DealID)

	lookup, trigger := p.lookup(ctx, p.recs, key, digests, req.ForceRefresh)
	if lookup.State == cache.Fresh {
		var recs models.ActionRecommendations
		if err := lookup.Artifact(&recs); err == nil {
			recs.IsCached = true
			return &Result[*models.ActionRecommendations]{
				Artifact:  &recs,
				Warnings:  validate.Audit(&recs),
				FromCache: true,
				Age:       lookup.Age,
				Trigger:   "fresh",
			}, nil
		}
		p.logger.Warn("cached recommendations unreadable, regenerating", "key", key)
		trigger = "miss"
	}

	v, err, _ := p.group.Do(KindRecommendation+"/"+key, func() (any, error) {
		hints := parser.Hints{DealID: req.DealID, DataVersion: digests[cache.DepSnapshotHash].Short()}
		changes, changesText := p.changes(lookup, req.Snapshot)

		prompt, err := p.composer.Compose(ctx, PromptInput{
			Kind:            KindRecommendation,
			Template:        req.Template,
			Snapshot:        req.Snapshot,
			Summary:         req.Summary,
			CompanyContext:  req.CompanyContext,
			CampaignContext: req.CampaignContext,
			Changes:         changes,
			ChangesText:     changesText,
			Hints:           hints,
		})
		if err != nil {
			return nil, fmt.Errorf("compose recommendation prompt: %w", err)
		}

		metrics.Regenerations.WithLabelValues(KindRecommendation, trigger).Inc()
		raw, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("generate recommendations: %w", err)
		}

		outcome, err := p.parser.Parse(raw, hints)
		if err != nil {
			return nil, err
		}

		recs := outcome.Data
		if recs.RecommendationID == "" {
			recs.RecommendationID = uuid.NewString()
		}
		if recs.GeneratedAt.IsZero() {
			recs.GeneratedAt = p.now().UTC()
		}
		recs.IsCached = false

		p.recs.Store(ctx, key, digests, req.Snapshot, recs, 0)
		p.logger.Info("recommendations generated",
			"deal_id", recs.DealID, "recommendation_id", recs.RecommendationID,
			"actions", recs.TotalActions(), "tier", outcome.TierUsed.String())

		return &Result[*models.ActionRecommendations]{
			Artifact: recs,
			Warnings: outcome.Warnings,
			Diff:     changes,
			Trigger:  trigger,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*Result[*models.ActionRecommendations])
	recs := *res.Artifact
	res.Artifact = &recs
	return &res, nil
}

// lookup classifies the cached record and names the regeneration trigger.
func (p *Pipeline) lookup(ctx context.Context, c *cache.Cache, key string, digests snapshot.Digests, force bool) (cache.LookupResult, string) {
	res := c.Lookup(ctx, key, digests)
	switch {
	case force:
		p.logger.Info("forced refresh", "key", key, "state", res.State.String())
		if res.State == cache.Fresh {
			res.State = cache.Stale
		}
		return res, "forced"
	case res.State == cache.Stale:
		return res, "stale"
	default:
		return res, "miss"
	}
}

// changes diffs the stored snapshot against the current one when a prior
// record exists.
func (p *Pipeline) changes(lookup cache.LookupResult, current snapshot.Snapshot) (*models.DiffResult, string) {
	if lookup.State != cache.Stale {
		return nil, ""
	}
	prior, err := lookup.PriorSnapshot()
	if err != nil || prior == nil {
		if err != nil {
			p.logger.Warn("stored snapshot unreadable, skipping diff", "error", err)
		}
		return nil, ""
	}
	d := p.differ.Compute(prior, current)
	return d, diff.Format(d)
}
