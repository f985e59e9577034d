// ABOUTME: Database schema definitions and migrations
// ABOUTME: Creates the feedback and context-update logs; cache tables are created per policy
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recommendation_id TEXT NOT NULL,
	deal_id TEXT NOT NULL,
	action_priority TEXT,
	action_channel TEXT,
	feedback_type TEXT NOT NULL CHECK(feedback_type IN ('positive', 'negative', 'neutral')),
	feedback_text TEXT NOT NULL,
	what_worked TEXT,
	what_didnt_work TEXT,
	suggested_improvement TEXT,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_feedback_log_deal ON feedback_log(deal_id);
CREATE INDEX IF NOT EXISTS idx_feedback_log_recommendation ON feedback_log(recommendation_id);

CREATE TABLE IF NOT EXISTS context_updates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	update_type TEXT NOT NULL,
	section TEXT NOT NULL,
	content TEXT NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	source_feedback_id INTEGER,
	FOREIGN KEY (source_feedback_id) REFERENCES feedback_log(id)
);

CREATE INDEX IF NOT EXISTS idx_context_updates_feedback ON context_updates(source_feedback_id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
