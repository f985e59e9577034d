package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/engage/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 15*time.Minute, cfg.SourceTTL(cache.SourceBrevoCRM))
	assert.Equal(t, 24*time.Hour, cfg.SourceTTL(cache.SourceLinkedIn))
	assert.Equal(t, cache.DefaultEntityTTL, cfg.SourceTTL("unknown_source"))
	assert.Equal(t, cache.DefaultRecommendationTTL, cfg.TTL.Recommendation.Std())
	assert.False(t, cfg.TrackSummaryHash)
	assert.Contains(t, cfg.VolatileFields, "updated_at")
	assert.Equal(t, 5, cfg.Parser.MaxCandidates)
	assert.Equal(t, 500, cfg.Parser.SnippetLength)
}

func TestLoadYAMLMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
data_dir: `+dir+`
backend: badger
log_level: DEBUG
track_summary_hash: true
ttl:
  recommendation: 2h
  sources:
    brevo_crm: 1m
parser:
  max_candidates: 8
  snippet_length: 200
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.TrackSummaryHash)
	assert.Equal(t, 2*time.Hour, cfg.TTL.Recommendation.Std())
	assert.Equal(t, cache.DefaultSummaryTTL, cfg.TTL.Summary.Std(), "unset keys keep defaults")
	assert.Equal(t, time.Minute, cfg.SourceTTL(cache.SourceBrevoCRM))
	assert.Equal(t, 5*time.Minute, cfg.SourceTTL(cache.SourceBrevoNotes), "other sources keep defaults")
	assert.Equal(t, 8, cfg.Parser.MaxCandidates)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "backend: badger\n")

	t.Setenv("ENGAGE_BACKEND", "sqlite")
	t.Setenv("ENGAGE_DATA_DIR", dir)
	t.Setenv("ENGAGE_CACHE_DB", "")
	t.Setenv("ENGAGE_SUMMARY_TTL", "90m")
	t.Setenv("ENGAGE_TRACK_SUMMARY_HASH", "true")
	t.Setenv("ENGAGE_GENERATOR", "llm -m fast")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 90*time.Minute, cfg.TTL.Summary.Std())
	assert.True(t, cfg.TrackSummaryHash)
	assert.Equal(t, "llm -m fast", cfg.GeneratorCommand)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "backend: redis\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ttl:\n  summary: soon\n"))
	assert.Error(t, err)

	t.Setenv("ENGAGE_RECOMMENDATION_TTL", "later")
	_, err = Load(writeConfig(t, ""))
	assert.Error(t, err)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.TTL.Summary = Duration(3 * time.Hour)
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "summary: 3h0m0s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, loaded.TTL.Summary.Std())
}
