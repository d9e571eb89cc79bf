// Package config handles graphexec configuration via YAML or TOML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --engine, etc.)
//  2. Environment variables (GRAPHEXEC_*)
//  3. Config file (graphexec.yaml or graphexec.toml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	store, err := cfg.OpenStorage()
//
// Environment Variables (all use GRAPHEXEC_ prefix):
//
// Storage:
//   - GRAPHEXEC_STORAGE_ENGINE="memory" or "badger"
//   - GRAPHEXEC_DATA_DIR="./data"
//   - GRAPHEXEC_IN_MEMORY=true
//   - GRAPHEXEC_SERIALIZER="gob" or "msgpack"
//   - GRAPHEXEC_SYNC_WRITES=true
//
// Writes:
//   - GRAPHEXEC_AUTO_COMMIT=true
//   - GRAPHEXEC_DEFER_APPLY=false
//   - GRAPHEXEC_MAX_LABELS=100
//   - GRAPHEXEC_MAX_PROPERTIES=1000
//   - GRAPHEXEC_MAX_STRING_SIZE="1MB"
//   - GRAPHEXEC_MAX_NAME_LENGTH=255
//
// Executor:
//   - GRAPHEXEC_MAX_SORT_ROWS=1000000
//   - GRAPHEXEC_DEFAULT_LIMIT=0
//   - GRAPHEXEC_PRETTY_JSON=false
//
// Logging:
//   - GRAPHEXEC_VERBOSE=false
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/graphexec/pkg/iterator"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/write"
)

// Storage engine names.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// Config holds all graphexec configuration.
//
// Configuration is organized into logical sections:
//   - Storage: which graph store to open and how
//   - Write: transaction behavior and size limits for mutations
//   - Executor: read pipeline bounds and result formatting
//   - Logging: diagnostic output
type Config struct {
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Write    WriteConfig    `yaml:"write" toml:"write"`
	Executor ExecutorConfig `yaml:"executor" toml:"executor"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// Engine is "memory" or "badger".
	Engine string `yaml:"engine" toml:"engine"`
	// DataDir is the Badger directory. Ignored for memory and in-memory Badger.
	DataDir string `yaml:"data_dir" toml:"data_dir"`
	// InMemory runs Badger without touching disk.
	InMemory bool `yaml:"in_memory" toml:"in_memory"`
	// Serializer for Badger records: "gob" or "msgpack".
	Serializer string `yaml:"serializer" toml:"serializer"`
	// SyncWrites fsyncs every Badger write.
	SyncWrites bool `yaml:"sync_writes" toml:"sync_writes"`
}

// WriteConfig holds write engine settings.
type WriteConfig struct {
	AutoCommit     bool `yaml:"auto_commit" toml:"auto_commit"`
	DeferApply     bool `yaml:"defer_apply" toml:"defer_apply"`
	MaxLabels      int  `yaml:"max_labels" toml:"max_labels"`
	MaxProperties  int  `yaml:"max_properties" toml:"max_properties"`
	MaxStringBytes int  `yaml:"max_string_bytes" toml:"max_string_bytes"`
	MaxNameLength  int  `yaml:"max_name_length" toml:"max_name_length"`
}

// ExecutorConfig holds read pipeline settings.
type ExecutorConfig struct {
	// MaxSortRows bounds Sort buffers; 0 means unbounded.
	MaxSortRows int `yaml:"max_sort_rows" toml:"max_sort_rows"`
	// DefaultLimit caps query results when the plan has no limit; 0 disables.
	DefaultLimit int64 `yaml:"default_limit" toml:"default_limit"`
	PrettyJSON   bool  `yaml:"pretty_json" toml:"pretty_json"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Verbose logs transaction boundaries and storage lifecycle.
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// LoadDefaults returns a Config with built-in defaults only.
func LoadDefaults() *Config {
	limits := write.DefaultLimits()
	return &Config{
		Storage: StorageConfig{
			Engine:     EngineMemory,
			DataDir:    "./data",
			Serializer: string(storage.SerializerGob),
		},
		Write: WriteConfig{
			AutoCommit:     true,
			MaxLabels:      limits.MaxLabels,
			MaxProperties:  limits.MaxProperties,
			MaxStringBytes: limits.MaxStringBytes,
			MaxNameLength:  limits.MaxNameLength,
		},
		Executor: ExecutorConfig{
			MaxSortRows: 1_000_000,
		},
	}
}

// LoadFromEnv returns defaults overridden by GRAPHEXEC_* variables.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	ApplyEnvVars(cfg)
	return cfg
}

// LoadFromFile loads defaults, then the config file, then environment
// variables. Files ending in .toml are read as TOML, anything else as YAML.
// A missing file or empty path is not an error.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()
	if configPath == "" {
		ApplyEnvVars(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvVars(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnvVars(cfg)
	return cfg, nil
}

// ApplyEnvVars overrides cfg with any GRAPHEXEC_* variables that are set.
func ApplyEnvVars(cfg *Config) {
	// Storage
	cfg.Storage.Engine = strings.ToLower(getEnv("GRAPHEXEC_STORAGE_ENGINE", cfg.Storage.Engine))
	cfg.Storage.DataDir = getEnv("GRAPHEXEC_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.InMemory = getEnvBool("GRAPHEXEC_IN_MEMORY", cfg.Storage.InMemory)
	cfg.Storage.Serializer = getEnv("GRAPHEXEC_SERIALIZER", cfg.Storage.Serializer)
	cfg.Storage.SyncWrites = getEnvBool("GRAPHEXEC_SYNC_WRITES", cfg.Storage.SyncWrites)

	// Writes
	cfg.Write.AutoCommit = getEnvBool("GRAPHEXEC_AUTO_COMMIT", cfg.Write.AutoCommit)
	cfg.Write.DeferApply = getEnvBool("GRAPHEXEC_DEFER_APPLY", cfg.Write.DeferApply)
	cfg.Write.MaxLabels = getEnvInt("GRAPHEXEC_MAX_LABELS", cfg.Write.MaxLabels)
	cfg.Write.MaxProperties = getEnvInt("GRAPHEXEC_MAX_PROPERTIES", cfg.Write.MaxProperties)
	if v := os.Getenv("GRAPHEXEC_MAX_STRING_SIZE"); v != "" {
		if n, ok := parseMemorySize(v); ok {
			cfg.Write.MaxStringBytes = int(n)
		}
	}
	cfg.Write.MaxNameLength = getEnvInt("GRAPHEXEC_MAX_NAME_LENGTH", cfg.Write.MaxNameLength)

	// Executor
	cfg.Executor.MaxSortRows = getEnvInt("GRAPHEXEC_MAX_SORT_ROWS", cfg.Executor.MaxSortRows)
	cfg.Executor.DefaultLimit = int64(getEnvInt("GRAPHEXEC_DEFAULT_LIMIT", int(cfg.Executor.DefaultLimit)))
	cfg.Executor.PrettyJSON = getEnvBool("GRAPHEXEC_PRETTY_JSON", cfg.Executor.PrettyJSON)

	// Logging
	cfg.Logging.Verbose = getEnvBool("GRAPHEXEC_VERBOSE", cfg.Logging.Verbose)
}

// Validate checks the configuration for errors.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory:
	case EngineBadger:
		if !c.Storage.InMemory && c.Storage.DataDir == "" {
			return fmt.Errorf("badger engine needs a data dir or in_memory")
		}
		if _, err := storage.ParseSerializer(c.Storage.Serializer); err != nil {
			return fmt.Errorf("invalid serializer: %w", err)
		}
	default:
		return fmt.Errorf("invalid storage engine: %q", c.Storage.Engine)
	}

	for name, v := range map[string]int{
		"max_labels":       c.Write.MaxLabels,
		"max_properties":   c.Write.MaxProperties,
		"max_string_bytes": c.Write.MaxStringBytes,
		"max_name_length":  c.Write.MaxNameLength,
		"max_sort_rows":    c.Executor.MaxSortRows,
	} {
		if v < 0 {
			return fmt.Errorf("invalid %s: %d", name, v)
		}
	}
	if c.Executor.DefaultLimit < 0 {
		return fmt.Errorf("invalid default_limit: %d", c.Executor.DefaultLimit)
	}
	return nil
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	dir := c.Storage.DataDir
	if c.Storage.Engine == EngineMemory || c.Storage.InMemory {
		dir = "(memory)"
	}
	return fmt.Sprintf(
		"Config{Engine: %s, DataDir: %s, Serializer: %s, AutoCommit: %v, DeferApply: %v, MaxSortRows: %d}",
		c.Storage.Engine, dir, c.Storage.Serializer,
		c.Write.AutoCommit, c.Write.DeferApply, c.Executor.MaxSortRows,
	)
}

// WriteOptions converts the write section for write.New.
func (c *Config) WriteOptions() write.Options {
	return write.Options{
		AutoCommit: c.Write.AutoCommit,
		DeferApply: c.Write.DeferApply,
		Verbose:    c.Logging.Verbose,
		Limits: write.Limits{
			MaxLabels:      c.Write.MaxLabels,
			MaxProperties:  c.Write.MaxProperties,
			MaxStringBytes: c.Write.MaxStringBytes,
			MaxNameLength:  c.Write.MaxNameLength,
		},
	}
}

// IteratorOptions converts the executor section for iterator.BuildWithOptions.
func (c *Config) IteratorOptions() iterator.Options {
	return iterator.Options{MaxSortRows: c.Executor.MaxSortRows}
}

// OpenStorage opens the configured engine. The caller owns the result and
// must Close it.
func (c *Config) OpenStorage() (storage.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Storage.Engine == EngineMemory {
		return storage.NewMemoryEngine(), nil
	}
	serializer, _ := storage.ParseSerializer(c.Storage.Serializer)
	return storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
		DataDir:    c.Storage.DataDir,
		InMemory:   c.Storage.InMemory,
		SyncWrites: c.Storage.SyncWrites,
		Serializer: serializer,
	})
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. ~/.graphexec/config.yaml
//  2. Same directory as the binary (graphexec.yaml, graphexec.toml)
//  3. Current working directory (graphexec.yaml, graphexec.toml)
//  4. ~/.config/graphexec/config.yaml (XDG)
func FindConfigFile() string {
	var candidates []string

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".graphexec", "config.yaml"))
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "graphexec.yaml"),
			filepath.Join(exeDir, "graphexec.toml"),
		)
	}

	candidates = append(candidates, "graphexec.yaml", "graphexec.toml")

	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "graphexec", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

// parseMemorySize parses a human-readable size: "1024", "64KB", "1MB", "2G".
func parseMemorySize(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val < 0 {
		return 0, false
	}
	return val * multiplier, true
}
