// Package config provides engine-wide limits and defaults, loadable from
// YAML or JSON files and overridable through QUIVER_* environment
// variables. Nothing here is ambient: callers construct a Config and pass
// it to the components that need it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quiverdata/quiver/internal/errors"
)

// Default limits.
const (
	DefaultMaxOperations         = 1000
	DefaultMaxBufferSize         = 1 << 30 // 1 GiB
	DefaultMaxDecompressionRatio = 100.0
	DefaultPoolMaxPerClass       = 32
	DefaultPoolMaxTotalMemory    = 64 << 20 // 64 MiB
	DefaultSampleSize            = 10_000
	DefaultQuadtreeCapacity      = 8
)

// Config holds engine limits. The zero value is not usable; start from
// Default or fill gaps with WithDefaults.
type Config struct {
	// MaxOperations caps query plan length.
	MaxOperations int `json:"max_operations" yaml:"max_operations"`
	// MaxBufferSize caps parser input buffers in bytes.
	MaxBufferSize int64 `json:"max_buffer_size" yaml:"max_buffer_size"`
	// MaxDecompressionRatio is the decompression-bomb guard for parsers.
	MaxDecompressionRatio float64 `json:"max_decompression_ratio" yaml:"max_decompression_ratio"`
	// PoolMaxPerClass caps unused buffers retained per pool size class.
	PoolMaxPerClass int `json:"pool_max_per_class" yaml:"pool_max_per_class"`
	// PoolMaxTotalMemory caps pooled bytes across all size classes.
	PoolMaxTotalMemory int64 `json:"pool_max_total_memory" yaml:"pool_max_total_memory"`
	// DefaultSampleSize is the sampler's target row count when unset.
	DefaultSampleSize int `json:"default_sample_size" yaml:"default_sample_size"`
	// QuadtreeCapacity is the per-node point capacity before subdivision.
	QuadtreeCapacity int `json:"quadtree_capacity" yaml:"quadtree_capacity"`
}

// Default returns a Config with every limit at its default.
func Default() Config {
	return Config{
		MaxOperations:         DefaultMaxOperations,
		MaxBufferSize:         DefaultMaxBufferSize,
		MaxDecompressionRatio: DefaultMaxDecompressionRatio,
		PoolMaxPerClass:       DefaultPoolMaxPerClass,
		PoolMaxTotalMemory:    DefaultPoolMaxTotalMemory,
		DefaultSampleSize:     DefaultSampleSize,
		QuadtreeCapacity:      DefaultQuadtreeCapacity,
	}
}

// WithDefaults returns a copy with unset (zero) fields filled from the
// defaults, so partial config files work.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.MaxOperations == 0 {
		c.MaxOperations = d.MaxOperations
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = d.MaxBufferSize
	}
	if c.MaxDecompressionRatio == 0 {
		c.MaxDecompressionRatio = d.MaxDecompressionRatio
	}
	if c.PoolMaxPerClass == 0 {
		c.PoolMaxPerClass = d.PoolMaxPerClass
	}
	if c.PoolMaxTotalMemory == 0 {
		c.PoolMaxTotalMemory = d.PoolMaxTotalMemory
	}
	if c.DefaultSampleSize == 0 {
		c.DefaultSampleSize = d.DefaultSampleSize
	}
	if c.QuadtreeCapacity == 0 {
		c.QuadtreeCapacity = d.QuadtreeCapacity
	}
	return c
}

// Validate rejects limits that would disable safety guards entirely.
func (c Config) Validate() error {
	if c.MaxOperations < 1 {
		return errors.NewValidation("Config", "max_operations must be at least 1")
	}
	if c.MaxBufferSize < 1 {
		return errors.NewValidation("Config", "max_buffer_size must be positive")
	}
	if c.MaxDecompressionRatio < 1 {
		return errors.NewValidation("Config", "max_decompression_ratio must be at least 1")
	}
	if c.PoolMaxPerClass < 0 {
		return errors.NewValidation("Config", "pool_max_per_class must be non-negative")
	}
	if c.PoolMaxTotalMemory < 0 {
		return errors.NewValidation("Config", "pool_max_total_memory must be non-negative")
	}
	if c.DefaultSampleSize < 1 {
		return errors.NewValidation("Config", "default_sample_size must be positive")
	}
	if c.QuadtreeCapacity < 1 {
		return errors.NewValidation("Config", "quadtree_capacity must be at least 1")
	}
	return nil
}

// LoadFromFile loads a config from a YAML or JSON file, chosen by
// extension. Missing fields fall back to defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	case ".json":
		err = json.Unmarshal(data, &c)
	default:
		return Config{}, errors.NewValidation("LoadFromFile",
			fmt.Sprintf("unsupported config format %q", ext))
	}
	if err != nil {
		return Config{}, errors.NewFormatCause("LoadFromFile", "parsing config file", err)
	}

	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// FromEnv overlays QUIVER_* environment variables onto c. Unset variables
// leave the receiver's values untouched; malformed values are an error.
func (c Config) FromEnv() (Config, error) {
	var err error
	if c.MaxOperations, err = envInt("QUIVER_MAX_OPERATIONS", c.MaxOperations); err != nil {
		return Config{}, err
	}
	if c.MaxBufferSize, err = envInt64("QUIVER_MAX_BUFFER_SIZE", c.MaxBufferSize); err != nil {
		return Config{}, err
	}
	if c.MaxDecompressionRatio, err = envFloat("QUIVER_MAX_DECOMPRESSION_RATIO", c.MaxDecompressionRatio); err != nil {
		return Config{}, err
	}
	if c.PoolMaxPerClass, err = envInt("QUIVER_POOL_MAX_PER_CLASS", c.PoolMaxPerClass); err != nil {
		return Config{}, err
	}
	if c.PoolMaxTotalMemory, err = envInt64("QUIVER_POOL_MAX_TOTAL_MEMORY", c.PoolMaxTotalMemory); err != nil {
		return Config{}, err
	}
	if c.DefaultSampleSize, err = envInt("QUIVER_DEFAULT_SAMPLE_SIZE", c.DefaultSampleSize); err != nil {
		return Config{}, err
	}
	if c.QuadtreeCapacity, err = envInt("QUIVER_QUADTREE_CAPACITY", c.QuadtreeCapacity); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func envInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidation("FromEnv", fmt.Sprintf("%s: %q is not an integer", key, raw))
	}
	return v, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidation("FromEnv", fmt.Sprintf("%s: %q is not an integer", key, raw))
	}
	return v, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewValidation("FromEnv", fmt.Sprintf("%s: %q is not a number", key, raw))
	}
	return v, nil
}
