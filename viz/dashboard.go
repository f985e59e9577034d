// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Provides an ASCII overview of cache health, feedback and the company context
package viz

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
)

type DashboardStats struct {
	// Cache overview, one row per policy
	Caches []models.CacheStats

	// Feedback totals
	Feedback *models.FeedbackStats

	// Company context
	ContextVersion  string
	ContextSections int

	// Recent activity (last 7 days)
	RecentActivity []ActivityItem
}

type ActivityItem struct {
	Date        time.Time
	Description string
}

const recentWindow = 7 * 24 * time.Hour

func GenerateDashboardStats(ctx context.Context, database *sql.DB, caches []*cache.Cache, contextFile string) (*DashboardStats, error) {
	stats := &DashboardStats{}

	for _, c := range caches {
		s, err := c.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cache stats: %w", err)
		}
		stats.Caches = append(stats.Caches, *s)
	}

	fb, err := db.FeedbackStats(database)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feedback stats: %w", err)
	}
	stats.Feedback = fb

	cc, err := companyctx.Load(contextFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load company context: %w", err)
	}
	stats.ContextVersion = cc.Version
	stats.ContextSections = len(cc.Sections)

	// Recent context updates
	updates, err := db.ListContextUpdates(database, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch context updates: %w", err)
	}
	cutoff := time.Now().Add(-recentWindow)
	for _, u := range updates {
		if u.AppliedAt.Before(cutoff) {
			continue
		}
		stats.RecentActivity = append(stats.RecentActivity, ActivityItem{
			Date:        u.AppliedAt,
			Description: fmt.Sprintf("%s update to %s", u.UpdateType, u.Section),
		})
	}

	return stats, nil
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	// Header
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  ENGAGE DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	// Cache overview
	out.WriteString("CACHES\n")
	renderCaches(&out, stats.Caches)
	out.WriteString("\n")

	// Feedback
	out.WriteString("FEEDBACK\n")
	if fb := stats.Feedback; fb != nil {
		out.WriteString(fmt.Sprintf("  👍 %d positive  👎 %d negative  · %d neutral  (%d total)\n",
			fb.ByType[models.FeedbackPositive], fb.ByType[models.FeedbackNegative], fb.ByType[models.FeedbackNeutral], fb.Total))
		if len(fb.ByChannel) > 0 {
			channels := make([]string, 0, len(fb.ByChannel))
			for ch, n := range fb.ByChannel {
				channels = append(channels, fmt.Sprintf("%s %d", ch, n))
			}
			sort.Strings(channels)
			out.WriteString("  by channel: " + strings.Join(channels, ", ") + "\n")
		}
	}
	out.WriteString("\n")

	// Context
	out.WriteString("COMPANY CONTEXT\n")
	out.WriteString(fmt.Sprintf("  📄 v%s  %d sections", stats.ContextVersion, stats.ContextSections))
	if stats.Feedback != nil {
		out.WriteString(fmt.Sprintf("  %d updates", stats.Feedback.ContextUpdates))
	}
	out.WriteString("\n")

	if len(stats.RecentActivity) > 0 {
		out.WriteString("\nRECENT ACTIVITY\n")
		for _, item := range stats.RecentActivity {
			out.WriteString(fmt.Sprintf("  %s  %s\n", item.Date.Local().Format("Jan 02 15:04"), item.Description))
		}
	}

	// Needs attention
	var expired int
	for _, c := range stats.Caches {
		expired += c.Expired
	}
	if expired > 0 {
		out.WriteString("\nNEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d expired cache entries - run `engage cache sweep`\n", expired))
	}

	return out.String()
}

func renderCaches(out *strings.Builder, caches []models.CacheStats) {
	// Find max total for scaling
	maxTotal := 0
	for _, c := range caches {
		if c.Total > maxTotal {
			maxTotal = c.Total
		}
	}
	if maxTotal == 0 {
		maxTotal = 1
	}

	for _, c := range caches {
		// Valid entries fill the bar, expired ones are shaded (0-10 blocks)
		validLength := (c.Valid * 10) / maxTotal
		expiredLength := (c.Expired * 10) / maxTotal
		if validLength+expiredLength > 10 {
			expiredLength = 10 - validLength
		}

		bar := strings.Repeat("█", validLength) + strings.Repeat("▒", expiredLength) + strings.Repeat("░", 10-validLength-expiredLength)

		out.WriteString(fmt.Sprintf("  %-21s %s  %3d (%d expired)\n",
			c.Policy, bar, c.Total, c.Expired))
	}
}
