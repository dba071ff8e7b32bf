package common

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Datasets    DatasetsConfig  `toml:"datasets"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	LLM         LLMConfig       `toml:"llm"`
	Logging     LoggingConfig   `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SchedulerConfig controls the batch scheduler's concurrency and pacing.
type SchedulerConfig struct {
	MaxActiveJobs    int    `toml:"max_active_jobs"`   // Global ceiling on concurrently draining jobs
	ChunkSize        int    `toml:"chunk_size"`        // Default parallelism width within a job
	ChunkDelay       string `toml:"chunk_delay"`       // Delay between chunks, duration string (default "1s")
	ProgressCacheTTL string `toml:"progress_cache_ttl"` // Progress snapshot cache TTL (default "30s")
	RegistryGrace    string `toml:"registry_grace"`    // How long terminal sessions stay in the registry (default "10m")
	JanitorSchedule  string `toml:"janitor_schedule"`  // Cron schedule for registry eviction sweeps
}

// DatasetsConfig contains configuration for the puzzle dataset catalog
type DatasetsConfig struct {
	Dir string `toml:"dir"` // Directory containing dataset subdirectories of puzzle JSON files
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Default model (default: "claude-sonnet-4-20250514")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	MaxTokens   int     `toml:"max_tokens"`  // Response token cap (default: 8192)
	Temperature float32 `toml:"temperature"` // Sampling temperature fallback (default: 0.2)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // Default model (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`    // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"` // Minimum spacing between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"`
}

// LLMConfig selects the default provider when a model carries no prefix
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "claude" or "gemini"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the built-in defaults applied before any file or
// environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/resolvo",
			},
		},
		Scheduler: SchedulerConfig{
			MaxActiveJobs:    3,
			ChunkSize:        10,
			ChunkDelay:       "1s",
			ProgressCacheTTL: "30s",
			RegistryGrace:    "10m",
			JanitorSchedule:  "@every 1m",
		},
		Datasets: DatasetsConfig{
			Dir: "./datasets",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Timeout:     "5m",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each file in order
// (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// always wins over file values so deployments can inject secrets.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RESOLVO_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}

	if v := os.Getenv("RESOLVO_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}

	if v := os.Getenv("RESOLVO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RESOLVO_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("RESOLVO_DATASETS_DIR"); v != "" {
		config.Datasets.Dir = v
	}
}

// Validate checks duration strings and value ranges that would otherwise
// fail deep inside the scheduler.
func (c *Config) Validate() error {
	durations := map[string]string{
		"scheduler.chunk_delay":        c.Scheduler.ChunkDelay,
		"scheduler.progress_cache_ttl": c.Scheduler.ProgressCacheTTL,
		"scheduler.registry_grace":     c.Scheduler.RegistryGrace,
		"claude.timeout":               c.Claude.Timeout,
		"gemini.timeout":               c.Gemini.Timeout,
		"gemini.rate_limit":            c.Gemini.RateLimit,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q: %w", key, value, err)
		}
	}

	if c.Scheduler.MaxActiveJobs <= 0 {
		return fmt.Errorf("scheduler.max_active_jobs must be positive, got %d", c.Scheduler.MaxActiveJobs)
	}
	if c.Scheduler.ChunkSize <= 0 {
		return fmt.Errorf("scheduler.chunk_size must be positive, got %d", c.Scheduler.ChunkSize)
	}

	return nil
}

// ChunkDelayDuration returns the parsed inter-chunk delay.
func (c *SchedulerConfig) ChunkDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.ChunkDelay)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// ProgressCacheTTLDuration returns the parsed progress cache TTL.
func (c *SchedulerConfig) ProgressCacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.ProgressCacheTTL)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// RegistryGraceDuration returns the parsed registry retention grace.
func (c *SchedulerConfig) RegistryGraceDuration() time.Duration {
	d, err := time.ParseDuration(c.RegistryGrace)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
