// ABOUTME: Configuration for storage paths, TTLs, volatile fields and parser bounds
// ABOUTME: Layers defaults, a YAML file, .env files and ENGAGE_* environment overrides

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/harperreed/engage/cache"
	"github.com/harperreed/engage/parser"
	"github.com/harperreed/engage/snapshot"
	"github.com/harperreed/engage/validate"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the XDG subdirectories.
	AppName = "engage"

	// ConfigFileName is the default config file under $XDG_CONFIG_HOME/engage.
	ConfigFileName = "config.yaml"

	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Duration reads and writes YAML durations such as "15m" or "24h".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// TTLConfig holds every cache lifetime.
type TTLConfig struct {
	// Sources maps an entity source such as brevo_crm to its TTL.
	Sources        map[string]Duration `yaml:"sources"`
	Default        Duration            `yaml:"default"`
	Summary        Duration            `yaml:"summary"`
	Recommendation Duration            `yaml:"recommendation"`
}

// ParserConfig bounds the best-effort tier and failure snippets.
type ParserConfig struct {
	MaxCandidates int `yaml:"max_candidates" validate:"min=1,max=50"`
	SnippetLength int `yaml:"snippet_length" validate:"min=1"`
}

// Config holds engage settings.
type Config struct {
	DataDir            string       `yaml:"data_dir"`
	CacheDB            string       `yaml:"cache_db"`
	BadgerDir          string       `yaml:"badger_dir"`
	Backend            string       `yaml:"backend" validate:"oneof=sqlite badger"`
	CompanyContextFile string       `yaml:"company_context_file"`
	DebugDir           string       `yaml:"debug_dir"`
	LogLevel           string       `yaml:"log_level" validate:"oneof=debug info warn error"`
	TTL                TTLConfig    `yaml:"ttl"`
	TrackSummaryHash   bool         `yaml:"track_summary_hash"`
	VolatileFields     []string     `yaml:"volatile_fields"`
	Parser             ParserConfig `yaml:"parser"`
	// GeneratorCommand is run with the prompt on stdin by summarize and
	// recommend, e.g. "llm -m gpt-4o-mini".
	GeneratorCommand   string       `yaml:"generator_command,omitempty"`
}

// Default returns a config with every path under the XDG directories.
func Default() *Config {
	dataDir := filepath.Join(xdg.DataHome, AppName)

	sources := make(map[string]Duration)
	for source, ttl := range cache.DefaultSourceTTLs() {
		sources[source] = Duration(ttl)
	}

	return &Config{
		DataDir:            dataDir,
		CacheDB:            filepath.Join(dataDir, "cache.db"),
		BadgerDir:          filepath.Join(dataDir, "badger"),
		Backend:            BackendSQLite,
		CompanyContextFile: filepath.Join(dataDir, "company_context.md"),
		DebugDir:           filepath.Join(xdg.StateHome, AppName, "debug"),
		LogLevel:           "info",
		TTL: TTLConfig{
			Sources:        sources,
			Default:        Duration(cache.DefaultEntityTTL),
			Summary:        Duration(cache.DefaultSummaryTTL),
			Recommendation: Duration(cache.DefaultRecommendationTTL),
		},
		VolatileFields: append([]string(nil), snapshot.DefaultVolatileFields...),
		Parser: ParserConfig{
			MaxCandidates: parser.DefaultMaxCandidates,
			SnippetLength: parser.DefaultSnippetLength,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/engage/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, ConfigFileName)
}

// Load builds the config. An empty path reads DefaultPath if it exists;
// an explicit path must exist. .env files are loaded before ENGAGE_*
// variables are applied, without overriding variables already set.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	cfg.fillDerived()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads ./.env, then the global one. godotenv never replaces a
// variable that is already set, so the local file wins.
func loadDotEnv() {
	for _, file := range []string{".env", filepath.Join(xdg.ConfigHome, AppName, ".env")} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn("failed to load env file", "file", file, "error", err)
		}
	}
}

// applyEnv applies ENGAGE_* overrides.
func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"ENGAGE_DATA_DIR":        &cfg.DataDir,
		"ENGAGE_CACHE_DB":        &cfg.CacheDB,
		"ENGAGE_BADGER_DIR":      &cfg.BadgerDir,
		"ENGAGE_BACKEND":         &cfg.Backend,
		"ENGAGE_COMPANY_CONTEXT": &cfg.CompanyContextFile,
		"ENGAGE_DEBUG_DIR":       &cfg.DebugDir,
		"ENGAGE_LOG_LEVEL":       &cfg.LogLevel,
		"ENGAGE_GENERATOR":       &cfg.GeneratorCommand,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"ENGAGE_SUMMARY_TTL":        &cfg.TTL.Summary,
		"ENGAGE_RECOMMENDATION_TTL": &cfg.TTL.Recommendation,
		"ENGAGE_ENTITY_TTL":         &cfg.TTL.Default,
	}
	for name, dst := range durations {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = Duration(d)
	}

	if v := strings.TrimSpace(getenv("ENGAGE_TRACK_SUMMARY_HASH")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ENGAGE_TRACK_SUMMARY_HASH: %w", err)
		}
		cfg.TrackSummaryHash = b
	}
	return nil
}

// fillDerived re-roots unset paths under DataDir.
func (c *Config) fillDerived() {
	if c.CacheDB == "" {
		c.CacheDB = filepath.Join(c.DataDir, "cache.db")
	}
	if c.BadgerDir == "" {
		c.BadgerDir = filepath.Join(c.DataDir, "badger")
	}
	if c.CompanyContextFile == "" {
		c.CompanyContextFile = filepath.Join(c.DataDir, "company_context.md")
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Backend = strings.ToLower(c.Backend)
}

// SourceTTL returns the entity TTL for source, or the default.
func (c *Config) SourceTTL(source string) time.Duration {
	if ttl, ok := c.TTL.Sources[source]; ok && ttl > 0 {
		return ttl.Std()
	}
	return c.TTL.Default.Std()
}

// SourceTTLs returns the source table as plain durations.
func (c *Config) SourceTTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.TTL.Sources))
	for source, ttl := range c.TTL.Sources {
		out[source] = ttl.Std()
	}
	return out
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
