// ABOUTME: Opens the stores, caches and services a command needs from the loaded config
// ABOUTME: SQLite always holds feedback; caches live in SQLite or Badger depending on the backend setting
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/config"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/diff"
	"github.com/harperreed/engage/feedback"
	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/pipeline"
	"github.com/harperreed/engage/snapshot"
)

// Runtime is everything opened for one command invocation.
type Runtime struct {
	Config          *config.Config
	Logger          *slog.Logger
	DB              *sql.DB
	Badger          *badger.DB
	Digester        *snapshot.Digester
	Differ          *diff.Engine
	Parser          *parser.Parser
	Entities        *cache.EntityCache
	Summaries       *cache.Cache
	Recommendations *cache.Cache
	Feedback        *feedback.Processor
}

// OpenRuntime opens the database and builds every cache. Close must be
// called when done.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := db.OpenDatabase(cfg.CacheDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, DB: conn}
	rt.Digester = snapshot.NewDigester(snapshot.NewCanonicalizer(cfg.VolatileFields))
	rt.Differ = diff.NewEngine(rt.Digester.Canonicalizer())
	rt.Parser = parser.New(parser.Options{
		MaxCandidates: cfg.Parser.MaxCandidates,
		SnippetLength: cfg.Parser.SnippetLength,
		Dumper:        parser.NewDirDumper(cfg.DebugDir),
		Logger:        logger.With("component", "parser"),
	})
	rt.Feedback = feedback.NewProcessor(conn, cfg.CompanyContextFile, logger.With("component", "feedback"))

	if cfg.Backend == config.BackendBadger {
		if rt.Badger, err = cache.OpenBadger(cfg.BadgerDir, logger); err != nil {
			rt.Close()
			return nil, err
		}
	}

	entities, err := rt.openCache(ctx, cache.EntityPolicy(cfg.TTL.Default.Std()))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Entities = cache.NewEntityCache(entities, rt.Digester, cfg.SourceTTLs())

	if rt.Summaries, err = rt.openCache(ctx, cache.SummaryPolicy(cfg.TTL.Summary.Std())); err != nil {
		rt.Close()
		return nil, err
	}
	if rt.Recommendations, err = rt.openCache(ctx, cache.RecommendationPolicy(cfg.TTL.Recommendation.Std(), cfg.TrackSummaryHash)); err != nil {
		rt.Close()
		return nil, err
	}

	logger.Debug("runtime ready", "backend", cfg.Backend, "db", cfg.CacheDB)
	return rt, nil
}

func (rt *Runtime) openCache(ctx context.Context, policy cache.Policy) (*cache.Cache, error) {
	var (
		backend cache.Backend
		err     error
	)
	if rt.Badger != nil {
		backend, err = cache.NewBadgerBackend(rt.Badger, policy)
	} else {
		backend, err = cache.NewSQLiteBackend(ctx, rt.DB, policy)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", policy.Name, err)
	}
	return cache.New(policy, backend, cache.WithLogger(rt.Logger.With("component", "cache")))
}

// Caches returns every cache, entity first.
func (rt *Runtime) Caches() []*cache.Cache {
	return []*cache.Cache{rt.Entities.Cache(), rt.Summaries, rt.Recommendations}
}

// Pipeline wires the caches to gen.
func (rt *Runtime) Pipeline(gen pipeline.Generator) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Summaries:       rt.Summaries,
		Recommendations: rt.Recommendations,
		Digester:        rt.Digester,
		Differ:          rt.Differ,
		Parser:          rt.Parser,
		Composer:        pipeline.TemplateComposer{},
		Generator:       gen,
		Logger:          rt.Logger.With("component", "pipeline"),
	})
}

func (rt *Runtime) Close() {
	if rt.Badger != nil {
		if err := rt.Badger.Close(); err != nil {
			rt.Logger.Warn("failed to close badger", "error", err)
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Logger.Warn("failed to close database", "error", err)
		}
	}
}
