// Package config handles configuration for screenstate.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (config.yaml).
// Zero values are replaced by defaults at load time.
type Config struct {
	// Device settings
	Device  string `yaml:"device"`  // Target device serial (empty = auto-detect)
	LogPath string `yaml:"logPath"` // Log file path

	// Observation cache
	CacheRoot         string `yaml:"cacheRoot"`         // Cache directory (default: <home>/cache)
	CacheTTLMs        int    `yaml:"cacheTtlMs"`        // Entry time-to-live
	MaxDiskCacheBytes int64  `yaml:"maxDiskCacheBytes"` // Aggregate on-disk budget

	// Fuzzy matching
	FuzzyTolerancePercent float64 `yaml:"fuzzyTolerancePercent"` // Allowed pixel difference
	MemoryFuzzyCandidates int     `yaml:"memoryFuzzyCandidates"` // Candidates scanned in the memory tier
	DiskFuzzyCandidates   int     `yaml:"diskFuzzyCandidates"`   // Candidates scanned in the disk tier

	// Stability detection
	StabilityThresholdMs int `yaml:"stabilityThresholdMs"` // Quiet interval before STABLE
	PollIntervalMs       int `yaml:"pollIntervalMs"`       // Counter sampling interval
	TouchSettleMs        int `yaml:"touchSettleMs"`        // Fixed post-action settle delay
	HardTouchIdleLimitMs int `yaml:"hardTouchIdleLimitMs"` // Cap when quiescence is the only signal
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogPath:               filepath.Join(os.TempDir(), "screenstate.log"),
		CacheRoot:             GetCacheDir(),
		CacheTTLMs:            300_000,
		MaxDiskCacheBytes:     128 * 1024 * 1024,
		FuzzyTolerancePercent: 2,
		MemoryFuzzyCandidates: 5,
		DiskFuzzyCandidates:   10,
		StabilityThresholdMs:  60,
		PollIntervalMs:        17,
		TouchSettleMs:         300,
		HardTouchIdleLimitMs:  12_000,
	}
}

// Load loads configuration from a file, applying defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	cfg := Default()
	return &cfg, nil
}

// applyDefaults restores defaults for fields an explicit config zeroed out.
// A tolerance of 0 is meaningful (exact match) and is kept.
func (c *Config) applyDefaults() {
	def := Default()
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.CacheRoot == "" {
		c.CacheRoot = def.CacheRoot
	}
	if c.CacheTTLMs <= 0 {
		c.CacheTTLMs = def.CacheTTLMs
	}
	if c.MaxDiskCacheBytes <= 0 {
		c.MaxDiskCacheBytes = def.MaxDiskCacheBytes
	}
	if c.MemoryFuzzyCandidates <= 0 {
		c.MemoryFuzzyCandidates = def.MemoryFuzzyCandidates
	}
	if c.DiskFuzzyCandidates <= 0 {
		c.DiskFuzzyCandidates = def.DiskFuzzyCandidates
	}
	if c.StabilityThresholdMs <= 0 {
		c.StabilityThresholdMs = def.StabilityThresholdMs
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = def.PollIntervalMs
	}
	if c.TouchSettleMs <= 0 {
		c.TouchSettleMs = def.TouchSettleMs
	}
	if c.HardTouchIdleLimitMs <= 0 {
		c.HardTouchIdleLimitMs = def.HardTouchIdleLimitMs
	}
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// StabilityThreshold returns the quiet interval as a duration.
func (c *Config) StabilityThreshold() time.Duration {
	return time.Duration(c.StabilityThresholdMs) * time.Millisecond
}

// PollInterval returns the sampling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// TouchSettle returns the fixed settle delay as a duration.
func (c *Config) TouchSettle() time.Duration {
	return time.Duration(c.TouchSettleMs) * time.Millisecond
}

// HardTouchIdleLimit returns the quiescence cap as a duration.
func (c *Config) HardTouchIdleLimit() time.Duration {
	return time.Duration(c.HardTouchIdleLimitMs) * time.Millisecond
}
