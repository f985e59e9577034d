// ABOUTME: Storage backend contract for cache policies
// ABOUTME: SQLite tables via db.CacheRepository, or a shared Badger key space
package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
)

// Backend persists CacheRecords for one policy. Get returns (nil, nil)
// when the key is absent.
type Backend interface {
	Get(ctx context.Context, key string) (*models.CacheRecord, error)
	Put(ctx context.Context, rec *models.CacheRecord) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context, now time.Time) (*models.CacheStats, error)
}

var (
	_ Backend = (*db.CacheRepository)(nil)
	_ Backend = (*BadgerBackend)(nil)
)

// NewSQLiteBackend creates (or migrates) the policy's table in conn.
func NewSQLiteBackend(ctx context.Context, conn *sql.DB, policy Policy) (Backend, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	repo, err := db.NewCacheRepository(ctx, conn, policy.Name, policy.Columns())
	if err != nil {
		return nil, err
	}
	return repo, nil
}
