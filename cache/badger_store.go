// ABOUTME: Badger-backed cache storage, one key prefix per policy
// ABOUTME: Expiry lives inside the record so sweeps can count what they remove
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/engage/models"
)

// OpenBadger opens a Badger store at dir. An empty dir opens an in-memory
// store, which is what tests use.
func OpenBadger(dir string, logger *slog.Logger) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return bdb, nil
}

// badgerLogger routes Badger's internal logging through slog, demoting
// its chatty info lines to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

// BadgerBackend stores one policy's records under "<policy>/<key>".
type BadgerBackend struct {
	db      *badger.DB
	policy  string
	prefix  []byte
	columns []string
}

// NewBadgerBackend binds a policy to a shared Badger store.
func NewBadgerBackend(bdb *badger.DB, policy Policy) (*BadgerBackend, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &BadgerBackend{
		db:      bdb,
		policy:  policy.Name,
		prefix:  []byte(policy.Name + "/"),
		columns: policy.Columns(),
	}, nil
}

func (b *BadgerBackend) itemKey(key string) []byte {
	return append(append([]byte(nil), b.prefix...), key...)
}

func (b *BadgerBackend) Get(ctx context.Context, key string) (*models.CacheRecord, error) {
	var rec *models.CacheRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.itemKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded models.CacheRecord
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("corrupt cache record %s: %w", key, err)
			}
			rec = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if rec != nil {
		b.fillColumns(rec)
	}
	return rec, nil
}

// fillColumns makes the dependency map carry exactly the policy's columns,
// matching what the SQLite backend returns.
func (b *BadgerBackend) fillColumns(rec *models.CacheRecord) {
	deps := make(map[string]string, len(b.columns))
	for _, c := range b.columns {
		deps[c] = rec.Dependencies[c]
	}
	rec.Dependencies = deps
}

func (b *BadgerBackend) Put(ctx context.Context, rec *models.CacheRecord) error {
	if rec == nil || rec.Key == "" || len(rec.Artifact) == 0 {
		return fmt.Errorf("invalid cache record")
	}
	stored := *rec
	b.fillColumns(&stored)
	stored.GeneratedAt = rec.GeneratedAt.UTC()
	stored.ExpiresAt = rec.ExpiresAt.UTC()

	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.itemKey(rec.Key), data)
	})
}

func (b *BadgerBackend) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.itemKey(key))
	})
}

// scan visits every record of the policy. Undecodable records are passed
// as nil so callers can decide what to do with them.
func (b *BadgerBackend) scan(fn func(key []byte, rec *models.CacheRecord) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(b.prefix); it.ValidForPrefix(b.prefix); it.Next() {
			item := it.Item()
			var rec *models.CacheRecord
			err := item.Value(func(val []byte) error {
				var decoded models.CacheRecord
				if json.Unmarshal(val, &decoded) == nil {
					rec = &decoded
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteExpired removes expired records. Corrupt records are removed too,
// since they could never be served.
func (b *BadgerBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var doomed [][]byte
	err := b.scan(func(key []byte, rec *models.CacheRecord) error {
		if rec == nil || rec.Expired(now) {
			doomed = append(doomed, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b.deleteKeys(doomed)
}

func (b *BadgerBackend) Clear(ctx context.Context) (int, error) {
	var doomed [][]byte
	err := b.scan(func(key []byte, _ *models.CacheRecord) error {
		doomed = append(doomed, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b.deleteKeys(doomed)
}

func (b *BadgerBackend) deleteKeys(keys [][]byte) (int, error) {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (b *BadgerBackend) Stats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	stats := &models.CacheStats{Policy: b.policy}
	err := b.scan(func(_ []byte, rec *models.CacheRecord) error {
		stats.Total++
		if rec == nil {
			stats.Expired++
			return nil
		}
		if rec.Expired(now) {
			stats.Expired++
		} else {
			stats.Valid++
		}
		generated := rec.GeneratedAt
		if stats.Oldest == nil || generated.Before(*stats.Oldest) {
			stats.Oldest = &generated
		}
		if stats.Newest == nil || generated.After(*stats.Newest) {
			stats.Newest = &generated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
