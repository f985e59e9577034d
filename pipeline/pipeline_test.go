package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
  "deal_name": "Acme Corp Deal",
  "executive_summary": "High-value enterprise opportunity in evaluation phase with strong interest shown in our automated workflow features and API integration capabilities.",
  "key_insights": ["Decision maker attended demo personally"],
  "p0_actions": [
    {
      "action": {
        "type": "phone",
        "to_phone": "+1 555 010 2030",
        "to_name": "John Doe",
        "objective": "Confirm pilot scope and start date",
        "talking_points": ["Recap the integration questions from the demo", "Propose a two week pilot starting Monday"],
        "expected_duration_minutes": 20
      },
      "priority": "P0",
      "recommended_timing": "Tomorrow at 10am his time",
      "rationale": "The demo created momentum and a quick call locks in the pilot before the quarter closes",
      "context": "Demo completed yesterday with strong interest in workflow automation",
      "success_metrics": ["Pilot start date agreed on the call"]
    }
  ],
  "overall_strategy": "Fast-track approach focusing on immediate follow-up to capitalize on strong demo engagement and technical interest shown"
}`

type fakeGenerator struct {
	calls    atomic.Int32
	response string
	mu       sync.Mutex
	prompts  []string
	block    chan struct{}
	started  chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.calls.Add(1) == 1 && g.started != nil {
		close(g.started)
	}
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.block != nil {
		<-g.block
	}
	return g.response, nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

func dealSnapshot(contacts ...string) snapshot.Snapshot {
	list := make([]any, len(contacts))
	for i, id := range contacts {
		list[i] = map[string]any{"id": id, "name": "Contact " + id}
	}
	return snapshot.Snapshot{
		"primary_type":     "deal",
		"primary_record":   map[string]any{"id": "deal-7", "stage": "proposal", "modifiedAt": time.Now().String()},
		"related_entities": map[string]any{"contacts": list},
		"metadata":         map[string]any{"duration_ms": 12.0},
	}
}

func setupPipeline(t *testing.T, gen Generator) *Pipeline {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	newCache := func(policy cache.Policy) *cache.Cache {
		backend, err := cache.NewSQLiteBackend(ctx, conn, policy)
		require.NoError(t, err)
		c, err := cache.New(policy, backend)
		require.NoError(t, err)
		return c
	}

	p, err := New(Options{
		Summaries:       newCache(cache.SummaryPolicy(0)),
		Recommendations: newCache(cache.RecommendationPolicy(0, false)),
		Parser:          parser.New(parser.Options{}),
		Composer:        TemplateComposer{},
		Generator:       gen,
	})
	require.NoError(t, err)
	return p
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRecommendCachesUntilInputsChange(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	req := RecommendRequest{Snapshot: dealSnapshot("c1"), CompanyContext: "We sell widgets."}

	first, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "miss", first.Trigger)
	assert.Equal(t, "deal-7", first.Artifact.DealID, "deal id comes from the snapshot")
	assert.NotEmpty(t, first.Artifact.RecommendationID)
	assert.NotEmpty(t, first.Artifact.DataVersion)
	assert.EqualValues(t, 1, gen.calls.Load())

	// Volatile fields differ, so this is the same snapshot.
	req.Snapshot = dealSnapshot("c1")
	second, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.True(t, second.Artifact.IsCached)
	assert.Equal(t, first.Artifact.RecommendationID, second.Artifact.RecommendationID)
	assert.EqualValues(t, 1, gen.calls.Load(), "fresh hit must not regenerate")

	req.Summary = "A reworded summary"
	third, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.True(t, third.FromCache, "summary digest is recorded, not tracked")

	req.CompanyContext = "We sell widgets!"
	fourth, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.FromCache)
	assert.Equal(t, "stale", fourth.Trigger)
	require.NotNil(t, fourth.Diff)
	assert.True(t, fourth.Diff.IsEmpty(), "snapshot itself did not change")
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestRecommendStaleSnapshotCarriesDiff(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	_, err := p.Recommend(ctx, RecommendRequest{Snapshot: dealSnapshot("c1", "c2")})
	require.NoError(t, err)

	res, err := p.Recommend(ctx, RecommendRequest{Snapshot: dealSnapshot("c2", "c3")})
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.Equal(t, []string{"c3"}, res.Diff.Collections["contacts"].Added)
	assert.Equal(t, []string{"c1"}, res.Diff.Collections["contacts"].Removed)
	assert.Contains(t, gen.lastPrompt(), "Contacts: 1 added, 1 removed")
}

func TestRecommendForceRefresh(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	req := RecommendRequest{Snapshot: dealSnapshot("c1")}
	_, err := p.Recommend(ctx, req)
	require.NoError(t, err)

	req.ForceRefresh = true
	res, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "forced", res.Trigger)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestRecommendParseFailureStoresNothing(t *testing.T) {
	gen := &fakeGenerator{response: "Sorry, I can't help with that."}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	req := RecommendRequest{Snapshot: dealSnapshot("c1")}
	_, err := p.Recommend(ctx, req)
	var tfe *parser.TotalFailureError
	require.True(t, errors.As(err, &tfe))

	gen.response = validResponse
	res, err := p.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "miss", res.Trigger)
}

func TestRecommendCollapsesConcurrentRegeneration(t *testing.T) {
	gen := &fakeGenerator{response: validResponse, block: make(chan struct{}), started: make(chan struct{})}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	artifacts := make([]*models.ActionRecommendations, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if res, err := p.Recommend(ctx, RecommendRequest{Snapshot: dealSnapshot("c1")}); err == nil {
				artifacts[i] = res.Artifact
				succeeded.Add(1)
			}
		}(i)
	}

	<-gen.started
	time.Sleep(50 * time.Millisecond)
	close(gen.block)
	wg.Wait()

	assert.EqualValues(t, 1, gen.calls.Load())
	assert.EqualValues(t, 5, succeeded.Load())

	artifacts[0].DealID = "edited"
	for _, a := range artifacts[1:] {
		assert.NotSame(t, artifacts[0], a)
		assert.Equal(t, "deal-7", a.DealID, "callers do not see each other's edits")
	}
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{response: "  Deal is in proposal with one contact.  "}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	res, err := p.Summarize(ctx, SummaryRequest{Snapshot: dealSnapshot("c1")})
	require.NoError(t, err)
	assert.Equal(t, "Deal is in proposal with one contact.", res.Artifact.Text)
	assert.Equal(t, "deal", res.Artifact.PrimaryType)
	assert.Equal(t, "deal-7", res.Artifact.PrimaryID)
	assert.True(t, strings.Contains(gen.lastPrompt(), "Summarize the current state of this deal"))

	again, err := p.Summarize(ctx, SummaryRequest{Snapshot: dealSnapshot("c1")})
	require.NoError(t, err)
	assert.True(t, again.FromCache)

	changed, err := p.Summarize(ctx, SummaryRequest{Snapshot: dealSnapshot("c1"), Template: "Summarize {{.Snapshot.PrimaryID}} briefly."})
	require.NoError(t, err)
	assert.False(t, changed.FromCache, "a new prompt template invalidates the summary")
	assert.Equal(t, "Summarize deal-7 briefly.", gen.lastPrompt())
}

func TestSummarizeKeysAnonymousSnapshotsApart(t *testing.T) {
	gen := &fakeGenerator{response: "An unnamed deal."}
	p := setupPipeline(t, gen)
	ctx := context.Background()

	anon := func(stage string) snapshot.Snapshot {
		return snapshot.Snapshot{
			"primary_type":   "deal",
			"primary_record": map[string]any{"stage": stage},
		}
	}

	first, err := p.Summarize(ctx, SummaryRequest{Snapshot: anon("demo")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Artifact.PrimaryID, "snapshot-"))

	second, err := p.Summarize(ctx, SummaryRequest{Snapshot: anon("proposal")})
	require.NoError(t, err)
	assert.Equal(t, "miss", second.Trigger, "unrelated id-less snapshots do not share a cache row")
	assert.Nil(t, second.Diff)
	assert.NotEqual(t, first.Artifact.PrimaryID, second.Artifact.PrimaryID)

	again, err := p.Summarize(ctx, SummaryRequest{Snapshot: anon("demo")})
	require.NoError(t, err)
	assert.True(t, again.FromCache)
}

func TestSummarizeEmptyGeneration(t *testing.T) {
	p := setupPipeline(t, &fakeGenerator{response: "   "})
	_, err := p.Summarize(context.Background(), SummaryRequest{Snapshot: dealSnapshot("c1")})
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

func TestGeneratorFuncAndCommandParsing(t *testing.T) {
	g := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) { return strings.ToUpper(prompt), nil })
	out, err := g.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "HI", out)

	cmd, err := ParseCommand("llm -m  fast")
	require.NoError(t, err)
	assert.Equal(t, "llm", cmd.Name)
	assert.Equal(t, []string{"-m", "fast"}, cmd.Args)

	_, err = ParseCommand("   ")
	assert.ErrorIs(t, err, ErrMissingDependency)
}
