// ABOUTME: Repository for one cache policy's SQLite table
// ABOUTME: Insert-or-replace by logical key, dependency digests stored one column per name

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harperreed/engage/models"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidIdentifier = errors.New("invalid table or column name")
	ErrInvalidRecord     = errors.New("invalid cache record")
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reserved cache columns that dependency names may not shadow.
var reservedColumns = map[string]bool{
	"cache_key": true, "snapshot_json": true, "artifact_json": true,
	"generated_at": true, "expires_at": true,
}

// CacheRepository stores CacheRecords for one policy. The table has one
// TEXT column per dependency name; an absent digest is stored as ''.
type CacheRepository struct {
	db      *sql.DB
	table   string
	columns []string
}

// NewCacheRepository creates the policy table if needed and adds any
// dependency columns missing from an older table layout.
func NewCacheRepository(ctx context.Context, db *sql.DB, table string, columns []string) (*CacheRepository, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}
	for _, c := range columns {
		if !identifierPattern.MatchString(c) || reservedColumns[c] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, c)
		}
	}

	r := &CacheRepository{db: db, table: table, columns: append([]string(nil), columns...)}
	if err := r.init(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CacheRepository) init(ctx context.Context) error {
	var cols strings.Builder
	for _, c := range r.columns {
		fmt.Fprintf(&cols, "\t%s TEXT NOT NULL DEFAULT '',\n", c)
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY,
%[2]s	snapshot_json TEXT,
	artifact_json TEXT NOT NULL,
	generated_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_expires ON %[1]s(expires_at);
`, r.table, cols.String())

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", r.table, err)
	}
	return r.migrate(ctx)
}

// migrate adds dependency columns that a table created by an older
// version does not have yet.
func (r *CacheRepository) migrate(ctx context.Context) error {
	existing, err := r.existingColumns(ctx)
	if err != nil {
		return err
	}
	for _, c := range r.columns {
		if existing[c] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT NOT NULL DEFAULT ''", r.table, c)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", r.table, c, err)
		}
	}
	return nil
}

func (r *CacheRepository) existingColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Table returns the backing table name.
func (r *CacheRepository) Table() string {
	return r.table
}

// Columns returns the dependency column names.
func (r *CacheRepository) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Get retrieves a record by key. It returns (nil, nil) when no row exists.
func (r *CacheRepository) Get(ctx context.Context, key string) (*models.CacheRecord, error) {
	selectCols := append([]string{"cache_key"}, r.columns...)
	selectCols = append(selectCols, "snapshot_json", "artifact_json", "generated_at", "expires_at")
	query := fmt.Sprintf("SELECT %s FROM %s WHERE cache_key = ?", strings.Join(selectCols, ", "), r.table)

	rec := &models.CacheRecord{Dependencies: make(map[string]string, len(r.columns))}
	deps := make([]string, len(r.columns))
	var snapshotJSON sql.NullString
	var artifactJSON string

	dest := []any{&rec.Key}
	for i := range deps {
		dest = append(dest, &deps[i])
	}
	dest = append(dest, &snapshotJSON, &artifactJSON, &rec.GeneratedAt, &rec.ExpiresAt)

	err := r.db.QueryRowContext(ctx, query, key).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for i, c := range r.columns {
		rec.Dependencies[c] = deps[i]
	}
	if snapshotJSON.Valid && snapshotJSON.String != "" {
		rec.Snapshot = []byte(snapshotJSON.String)
	}
	rec.Artifact = []byte(artifactJSON)
	rec.GeneratedAt = rec.GeneratedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()

	return rec, nil
}

// Put inserts or replaces the row for rec.Key. Dependency names outside
// the table's columns are ignored.
func (r *CacheRepository) Put(ctx context.Context, rec *models.CacheRecord) error {
	if rec == nil || rec.Key == "" || len(rec.Artifact) == 0 {
		return ErrInvalidRecord
	}

	insertCols := append([]string{"cache_key"}, r.columns...)
	insertCols = append(insertCols, "snapshot_json", "artifact_json", "generated_at", "expires_at")

	args := []any{rec.Key}
	for _, c := range r.columns {
		args = append(args, rec.Dependencies[c])
	}
	var snapshotJSON any
	if len(rec.Snapshot) > 0 {
		snapshotJSON = string(rec.Snapshot)
	}
	args = append(args, snapshotJSON, string(rec.Artifact), rec.GeneratedAt.UTC(), rec.ExpiresAt.UTC())

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		r.table, strings.Join(insertCols, ", "), placeholders(len(insertCols)))

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// Delete removes one key. Deleting a missing key is not an error.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", r.table), key)
	return err
}

// DeleteExpired removes rows with expires_at <= now and returns how many
// were removed.
func (r *CacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", r.table), now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Clear removes every row and returns how many were removed.
func (r *CacheRepository) Clear(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", r.table))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Stats counts valid and expired rows at now.
func (r *CacheRepository) Stats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
			MIN(generated_at),
			MAX(generated_at)
		FROM %s
	`, r.table)

	stats := &models.CacheStats{Policy: r.table}
	var oldest, newest sql.NullString
	if err := r.db.QueryRowContext(ctx, query, now.UTC()).Scan(&stats.Total, &stats.Valid, &oldest, &newest); err != nil {
		return nil, err
	}
	stats.Expired = stats.Total - stats.Valid
	stats.Oldest = parseTimestamp(oldest)
	stats.Newest = parseTimestamp(newest)

	return stats, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// parseTimestamp reads a DATETIME value returned from an aggregate, which
// the driver hands back as text.
func parseTimestamp(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	value := strings.TrimSuffix(s.String, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
