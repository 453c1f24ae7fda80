// Package config loads the engine's internal, process-local tunables: the
// statement/transaction timeouts, executor batch size, parser recursion
// bound, HNSW graph limits, index compaction cadence, live-query channel
// capacity, and change-feed default retention. This is deliberately not a
// CLI or wire-protocol configuration loader — those stay out of scope per
// spec.md §1 — it only gives the engine itself typed, defaulted settings,
// following the teacher's config package shape (a single struct populated
// by github.com/spf13/viper, defaulted by github.com/creasty/defaults) but
// trimmed to what the engine core actually consumes.
package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// Executor holds executor resource-budget settings (spec.md §5).
type Executor struct {
	// BatchSize is how many records the executor pulls per iterator batch
	// before re-checking the deadline/cancellation signal.
	BatchSize int `mapstructure:"batch_size" default:"1024"`
	// SortMemoryBudgetBytes bounds in-memory buffering for ORDER BY/GROUP
	// BY/aggregation before the executor spills to SpillDir.
	SortMemoryBudgetBytes int64 `mapstructure:"sort_memory_budget_bytes" default:"67108864"`
	SpillDir              string `mapstructure:"spill_dir" default:""`
	// ParallelWorkers bounds concurrent sub-query ingestion for PARALLEL.
	ParallelWorkers int `mapstructure:"parallel_workers" default:"8"`
}

// Timeouts holds statement/transaction deadline defaults (spec.md §5).
type Timeouts struct {
	Statement   time.Duration `mapstructure:"statement" default:"30s"`
	Transaction time.Duration `mapstructure:"transaction" default:"60s"`
}

// Parser holds lexer/parser resource bounds (spec.md §4.1, §9).
type Parser struct {
	MaxRecursionDepth int `mapstructure:"max_recursion_depth" default:"128"`
	MaxLookahead      int `mapstructure:"max_lookahead" default:"4"`
}

// HNSW holds vector-index resource bounds (spec.md §4.6, §5).
type HNSW struct {
	MaxElements     int     `mapstructure:"max_elements" default:"1000000"`
	EvictOnOverflow bool    `mapstructure:"evict_on_overflow" default:"true"`
	M               int     `mapstructure:"m" default:"16"`
	EfConstruction  int     `mapstructure:"ef_construction" default:"200"`
	MLNormalization float64 `mapstructure:"ml_normalization" default:"0.36067"`
}

// FullText holds BM25 scoring defaults (spec.md §4.6).
type FullText struct {
	K1 float64 `mapstructure:"k1" default:"1.2"`
	B  float64 `mapstructure:"b" default:"0.75"`
}

// Compaction holds index-compaction task cadence (spec.md §4.6).
type Compaction struct {
	LeaseDuration     time.Duration `mapstructure:"lease_duration" default:"30s"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" default:"10s"`
	Schedule          string        `mapstructure:"schedule" default:"@every 1m"`
	ReadRateLimitHz   float64       `mapstructure:"read_rate_limit_hz" default:"2000"`
}

// LiveQuery holds live-query delivery settings (spec.md §4.7, §5, §9).
type LiveQuery struct {
	ChannelCapacity int           `mapstructure:"channel_capacity" default:"256"`
	LeaseSweep      string        `mapstructure:"lease_sweep" default:"@every 30s"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl" default:"2m"`
}

// ChangeFeed holds default retention (spec.md §3, §4.7).
type ChangeFeed struct {
	DefaultRetention time.Duration `mapstructure:"default_retention" default:"1h"`
}

// Logger holds log-level/format settings (engine-internal; see logger/zap).
type Logger struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"json"`
}

// Config is the root engine configuration value.
type Config struct {
	Executor   `mapstructure:"executor"`
	Timeouts   `mapstructure:"timeouts"`
	Parser     `mapstructure:"parser"`
	HNSW       `mapstructure:"hnsw"`
	FullText   `mapstructure:"fulltext"`
	Compaction `mapstructure:"compaction"`
	LiveQuery  `mapstructure:"livequery"`
	ChangeFeed `mapstructure:"changefeed"`
	Logger     `mapstructure:"logger"`
}

func (c *Config) setDefault() error {
	return defaults.Set(c)
}

var (
	mu  sync.RWMutex
	cur = defaultConfig()
)

func defaultConfig() *Config {
	c := new(Config)
	if err := c.setDefault(); err != nil {
		// defaults.Set only fails on reflect-incompatible struct tags,
		// which would be a programming error caught by any test run.
		panic(errors.Wrap(err, "config: invalid default tags"))
	}
	return c
}

// Load builds a Config from defaults, an optional overlay map (e.g.
// supplied by an embedding host's own config system) and env vars under
// envPrefix ("STRATADB" if empty). The overlay is merged as viper's config
// layer, which viper ranks below env vars, so a set env var wins over an
// overlay entry for the same key. It never
// reads CLI flags or network config, per spec.md §1's Non-goals.
func Load(envPrefix string, overlay map[string]any) (*Config, error) {
	c := defaultConfig()

	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	if envPrefix == "" {
		envPrefix = "STRATADB"
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if len(overlay) > 0 {
		if err := v.MergeConfigMap(overlay); err != nil {
			return nil, errors.Wrap(err, "config: failed to merge overlay")
		}
	}
	bindEnv(v, "executor.batch_size", "timeouts.statement", "timeouts.transaction",
		"parser.max_recursion_depth", "hnsw.max_elements", "compaction.schedule",
		"livequery.channel_capacity", "changefeed.default_retention", "logger.level")

	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "config: failed to unmarshal")
	}
	return c, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Set installs cfg as the process-wide config used by components that
// call Get instead of taking a *Config explicitly (index/compaction
// background tasks, primarily). Mirrors the teacher's global config.App.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	cur = cfg
}

// Get returns the process-wide config, defaulted if Set was never called.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// SpillDirOrTemp returns the configured spill directory, falling back to the OS
// temp dir when unset.
func (c *Config) SpillDirOrTemp() string {
	if c.Executor.SpillDir != "" {
		return c.Executor.SpillDir
	}
	return os.TempDir()
}
