package viz

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndRenderDashboard(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	conn, err := db.OpenDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	policy := cache.SummaryPolicy(0)
	backend, err := cache.NewSQLiteBackend(ctx, conn, policy)
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	summaries, err := cache.New(policy, backend, cache.WithClock(func() time.Time { return old }))
	require.NoError(t, err)
	require.True(t, summaries.Store(ctx, cache.SummaryKey("deal", "1"), snapshot.Digests{}, nil, "text", 0))

	require.NoError(t, db.LogFeedback(conn, &models.FeedbackEntry{
		RecommendationID: "rec-1",
		DealID:           "deal-1",
		ActionChannel:    models.ChannelEmail,
		FeedbackType:     models.FeedbackPositive,
		FeedbackText:     "good",
		RecordedAt:       time.Now(),
	}))
	require.NoError(t, db.LogContextUpdate(conn, &models.ContextUpdate{
		UpdateType: "learning",
		Section:    "Email Engagement Learnings",
		Content:    "- learned",
		AppliedAt:  time.Now(),
	}))

	stats, err := GenerateDashboardStats(ctx, conn, []*cache.Cache{summaries}, filepath.Join(dir, "company_context.md"))
	require.NoError(t, err)
	require.Len(t, stats.Caches, 1)
	assert.Equal(t, 1, stats.Caches[0].Total)
	assert.Equal(t, "1.0.0", stats.ContextVersion)
	assert.Positive(t, stats.ContextSections)
	require.Len(t, stats.RecentActivity, 1)

	out := RenderDashboard(stats)
	assert.Contains(t, out, "ENGAGE DASHBOARD")
	assert.Contains(t, out, "summary_cache")
	assert.Contains(t, out, "1 positive")
	assert.Contains(t, out, "email 1")
	assert.Contains(t, out, "learning update to Email Engagement Learnings")
	assert.Contains(t, out, "NEEDS ATTENTION")
}
