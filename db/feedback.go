// ABOUTME: Feedback log and context-update log database operations
// ABOUTME: Both tables are append-only; updates link back to the feedback that caused them
package db

import (
	"database/sql"
	"time"

	"github.com/harperreed/engage/models"
)

func LogFeedback(db *sql.DB, entry *models.FeedbackEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	res, err := db.Exec(`
		INSERT INTO feedback_log (recommendation_id, deal_id, action_priority, action_channel, feedback_type,
			feedback_text, what_worked, what_didnt_work, suggested_improvement, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RecommendationID, entry.DealID, nullIfEmpty(string(entry.ActionPriority)), nullIfEmpty(string(entry.ActionChannel)),
		string(entry.FeedbackType), entry.FeedbackText, nullIfEmpty(entry.WhatWorked), nullIfEmpty(entry.WhatDidntWork),
		nullIfEmpty(entry.SuggestedImprovement), entry.RecordedAt)
	if err != nil {
		return err
	}

	entry.ID, err = res.LastInsertId()
	return err
}

func GetFeedback(db *sql.DB, id int64) (*models.FeedbackEntry, error) {
	row := db.QueryRow(`
		SELECT id, recommendation_id, deal_id, action_priority, action_channel, feedback_type,
			feedback_text, what_worked, what_didnt_work, suggested_improvement, recorded_at
		FROM feedback_log WHERE id = ?
	`, id)

	entry, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// ListFeedback returns feedback newest first. An empty dealID lists all deals.
func ListFeedback(db *sql.DB, dealID string, limit int) ([]models.FeedbackEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, recommendation_id, deal_id, action_priority, action_channel, feedback_type,
			feedback_text, what_worked, what_didnt_work, suggested_improvement, recorded_at
		FROM feedback_log
	`
	args := []any{}
	if dealID != "" {
		query += " WHERE deal_id = ?"
		args = append(args, dealID)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.FeedbackEntry
	for rows.Next() {
		entry, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

func LogContextUpdate(db *sql.DB, update *models.ContextUpdate) error {
	if update.AppliedAt.IsZero() {
		update.AppliedAt = time.Now().UTC()
	}

	res, err := db.Exec(`
		INSERT INTO context_updates (update_type, section, content, applied_at, source_feedback_id)
		VALUES (?, ?, ?, ?, ?)
	`, update.UpdateType, update.Section, update.Content, update.AppliedAt, update.SourceFeedbackID)
	if err != nil {
		return err
	}

	update.ID, err = res.LastInsertId()
	return err
}

// ListContextUpdates returns updates newest first.
func ListContextUpdates(db *sql.DB, limit int) ([]models.ContextUpdate, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, update_type, section, content, applied_at, source_feedback_id
		FROM context_updates
		ORDER BY applied_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []models.ContextUpdate
	for rows.Next() {
		var u models.ContextUpdate
		var source sql.NullInt64
		if err := rows.Scan(&u.ID, &u.UpdateType, &u.Section, &u.Content, &u.AppliedAt, &source); err != nil {
			return nil, err
		}
		if source.Valid {
			id := source.Int64
			u.SourceFeedbackID = &id
		}
		updates = append(updates, u)
	}

	return updates, rows.Err()
}

func FeedbackStats(db *sql.DB) (*models.FeedbackStats, error) {
	stats := &models.FeedbackStats{
		ByType:    make(map[models.FeedbackType]int),
		ByChannel: make(map[models.Channel]int),
	}

	rows, err := db.Query(`SELECT feedback_type, COALESCE(action_channel, ''), COUNT(*) FROM feedback_log GROUP BY 1, 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var feedbackType, channel string
		var count int
		if err := rows.Scan(&feedbackType, &channel, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByType[models.FeedbackType(feedbackType)] += count
		if channel != "" {
			stats.ByChannel[models.Channel(channel)] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM context_updates`).Scan(&stats.ContextUpdates); err != nil {
		return nil, err
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*models.FeedbackEntry, error) {
	var entry models.FeedbackEntry
	var priority, channel, worked, didnt, improvement sql.NullString
	var feedbackType string

	err := row.Scan(&entry.ID, &entry.RecommendationID, &entry.DealID, &priority, &channel, &feedbackType,
		&entry.FeedbackText, &worked, &didnt, &improvement, &entry.RecordedAt)
	if err != nil {
		return nil, err
	}

	entry.ActionPriority = models.Priority(priority.String)
	entry.ActionChannel = models.Channel(channel.String)
	entry.FeedbackType = models.FeedbackType(feedbackType)
	entry.WhatWorked = worked.String
	entry.WhatDidntWork = didnt.String
	entry.SuggestedImprovement = improvement.String

	return &entry, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
