package httpcache

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kallax-dev/httpcache/freshness"
	"github.com/kallax-dev/httpcache/store"
)

// Config holds every tunable documented in §6 of the engine's
// specification. The zero value is valid: every field defaults the way
// DefaultConfig documents. EnableHeuristicFreshness and ServeStaleOnError
// default to true, so they are *bool (nil means "unset, use the
// default"); a plain bool zero value could not be told apart from an
// explicit false. Use BoolPtr, or set the field from DefaultConfig(),
// to turn either off.
type Config struct {
	MaxMemoryBytes   int64  `yaml:"maxMemoryBytes"`
	MaxMemoryEntries int    `yaml:"maxMemoryEntries"`
	MaxDiskBytes     int64  `yaml:"maxDiskBytes"`
	MaxDiskEntries   int    `yaml:"maxDiskEntries"`
	CacheType        string `yaml:"cacheType"`
	EvictionStrategy string `yaml:"evictionStrategy"`

	EnableHeuristicFreshness *bool         `yaml:"enableHeuristicFreshness"`
	HeuristicPercentage      float64       `yaml:"heuristicPercentage"`
	MaxHeuristicDuration     time.Duration `yaml:"maxHeuristicDuration"`

	ServeStaleOnError *bool         `yaml:"serveStaleOnError"`
	MaxStaleAge       time.Duration `yaml:"maxStaleAge"`

	DoubleKeyCache bool   `yaml:"doubleKeyCache"`
	DatabasePath   string `yaml:"databasePath"`

	EnableLogging bool `yaml:"enableLogging"`

	// CustomStorage overrides the default tiered L1+L2 composer entirely.
	// Unset (nil) means "use the tiered composer of L1+L2".
	CustomStorage store.Storage `yaml:"-"`
}

// BoolPtr returns a pointer to b, for setting Config.EnableHeuristicFreshness
// or Config.ServeStaleOnError to an explicit value (including false).
func BoolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns the documented defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		MaxMemoryBytes:           10 * 1024 * 1024,
		MaxMemoryEntries:         100,
		MaxDiskBytes:             50 * 1024 * 1024,
		MaxDiskEntries:           1000,
		CacheType:                string(freshness.CacheTypePrivate),
		EvictionStrategy:         string(store.EvictionLRU),
		EnableHeuristicFreshness: BoolPtr(true),
		HeuristicPercentage:      0.10,
		MaxHeuristicDuration:     7 * 24 * time.Hour,
		ServeStaleOnError:        BoolPtr(true),
		MaxStaleAge:              24 * time.Hour,
		DoubleKeyCache:           false,
		DatabasePath:             "",
		EnableLogging:            false,
	}
}

// withDefaults fills any zero-valued field of cfg from DefaultConfig,
// leaving explicitly-set fields untouched.
func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.MaxMemoryBytes == 0 {
		cfg.MaxMemoryBytes = d.MaxMemoryBytes
	}
	if cfg.MaxMemoryEntries == 0 {
		cfg.MaxMemoryEntries = d.MaxMemoryEntries
	}
	if cfg.MaxDiskBytes == 0 {
		cfg.MaxDiskBytes = d.MaxDiskBytes
	}
	if cfg.MaxDiskEntries == 0 {
		cfg.MaxDiskEntries = d.MaxDiskEntries
	}
	if cfg.CacheType == "" {
		cfg.CacheType = d.CacheType
	}
	if cfg.EvictionStrategy == "" {
		cfg.EvictionStrategy = d.EvictionStrategy
	}
	if cfg.EnableHeuristicFreshness == nil {
		cfg.EnableHeuristicFreshness = d.EnableHeuristicFreshness
	}
	if cfg.HeuristicPercentage == 0 {
		cfg.HeuristicPercentage = d.HeuristicPercentage
	}
	if cfg.MaxHeuristicDuration == 0 {
		cfg.MaxHeuristicDuration = d.MaxHeuristicDuration
	}
	if cfg.ServeStaleOnError == nil {
		cfg.ServeStaleOnError = d.ServeStaleOnError
	}
	if cfg.MaxStaleAge == 0 {
		cfg.MaxStaleAge = d.MaxStaleAge
	}
	return cfg
}

// LoadConfigFile reads a YAML document with the same field names as
// Config (lowerCamel keys) for hosts that prefer external configuration
// over building a Config in code.
//
// Grounded in the always-cache teacher's main.getConfig, which reads a
// YAML file via os.ReadFile + yaml.Unmarshal.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) heuristicOptions() freshness.HeuristicOptions {
	return freshness.HeuristicOptions{
		Enabled:         c.EnableHeuristicFreshness == nil || *c.EnableHeuristicFreshness,
		Percentage:      c.HeuristicPercentage,
		MaxDuration:     c.MaxHeuristicDuration,
		DefaultLifetime: freshness.DefaultHeuristicOptions().DefaultLifetime,
	}
}

func (c Config) cacheType() freshness.CacheType {
	if c.CacheType == string(freshness.CacheTypeShared) {
		return freshness.CacheTypeShared
	}
	return freshness.CacheTypePrivate
}

func (c Config) serveStaleOnError() bool {
	return c.ServeStaleOnError == nil || *c.ServeStaleOnError
}
