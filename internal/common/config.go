package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Queue       QueueConfig      `toml:"queue"`
	Storage     StorageConfig    `toml:"storage"`
	Cities      CitiesConfig     `toml:"cities"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Analyzer    AnalyzerConfig   `toml:"analyzer"`
	Validation  ValidationConfig `toml:"validation"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often executors poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent crawl executors
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max receives before dead-letter
	BatchSize         int    `toml:"batch_size"`         // Dispatcher batch ceiling
}

type StorageConfig struct {
	Path           string `toml:"path"`             // Badger database directory
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// CitiesConfig points at the directory of per-city JSON spider configurations
type CitiesConfig struct {
	Dir string `toml:"dir"`
}

type CrawlerConfig struct {
	UserAgent           string             `toml:"user_agent"`
	RequestTimeout      string             `toml:"request_timeout"`       // per-request HTTP timeout
	CrawlTimeout        string             `toml:"crawl_timeout"`         // per-message deadline
	BrowserTimeout      string             `toml:"browser_timeout"`       // deadline for browser-rendered adapters
	MaxRetries          int                `toml:"max_retries"`           // retry attempts before dead-letter
	DefaultRateLimit    float64            `toml:"default_rate_limit"`    // requests/second per host
	DomainRateLimits    map[string]float64 `toml:"domain_rate_limits"`    // per-host overrides
	RateLimitStarvation string             `toml:"rate_limit_starvation"` // wait beyond this yields ErrRateLimited
}

type AnalyzerConfig struct {
	Timeout         string  `toml:"timeout"`         // per-analyzer timeout
	HighConfidence  float64 `toml:"high_confidence"` // summary threshold
	EnableAI        bool    `toml:"enable_ai"`       // Claude-backed analyzer (requires API key)
	AnthropicAPIKey string  `toml:"anthropic_api_key"`
	AnthropicModel  string  `toml:"anthropic_model"`
}

type ValidationConfig struct {
	ParallelWorkers  int     `toml:"parallel_workers"`
	TimeoutPerCity   string  `toml:"timeout_per_city"`
	SearchDays       int     `toml:"search_days"`
	RequestDelay     string  `toml:"request_delay"`     // inter-chunk pause
	SamplePercentage float64 `toml:"sample_percentage"` // sample mode
	HeadProbe        bool    `toml:"head_probe"`        // HEAD a sample of file URLs
	Verbose          bool    `toml:"verbose"`
	OutputDir        string  `toml:"output_dir"`
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression for the daily today-yesterday crawl
	Platform string `toml:"platform"` // optional platform filter
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			BatchSize:         100,
		},
		Storage: StorageConfig{
			Path: "./data/diario.db",
		},
		Cities: CitiesConfig{
			Dir: "./configs/cities",
		},
		Crawler: CrawlerConfig{
			UserAgent:        "diario-crawler/1.0",
			RequestTimeout:   "30s",
			CrawlTimeout:     "60s",
			BrowserTimeout:   "120s",
			MaxRetries:       3,
			DefaultRateLimit: 5,
			DomainRateLimits: map[string]float64{
				"doem.org.br":     3,
				"adiarios.com.br": 3,
			},
			RateLimitStarvation: "15s",
		},
		Analyzer: AnalyzerConfig{
			Timeout:        "10s",
			HighConfidence: 0.8,
			AnthropicModel: "claude-sonnet-4-20250514",
		},
		Validation: ValidationConfig{
			ParallelWorkers:  10,
			TimeoutPerCity:   "60s",
			SearchDays:       7,
			RequestDelay:     "500ms",
			SamplePercentage: 10,
			HeadProbe:        true,
			OutputDir:        "./reports",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 6 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from default values, then overlays each
// config file in order, then environment variables. Later sources win.
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

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DIARIO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("DIARIO_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("DIARIO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("DIARIO_CITIES_DIR"); v != "" {
		config.Cities.Dir = v
	}
	if v := os.Getenv("DIARIO_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Analyzer.AnthropicAPIKey = v
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be at least 1, got %d", config.Queue.Concurrency)
	}
	if config.Queue.BatchSize < 1 || config.Queue.BatchSize > 100 {
		return fmt.Errorf("queue batch size must be in [1,100], got %d", config.Queue.BatchSize)
	}
	for _, field := range []struct {
		name, value string
	}{
		{"queue.poll_interval", config.Queue.PollInterval},
		{"queue.visibility_timeout", config.Queue.VisibilityTimeout},
		{"crawler.request_timeout", config.Crawler.RequestTimeout},
		{"crawler.crawl_timeout", config.Crawler.CrawlTimeout},
		{"crawler.browser_timeout", config.Crawler.BrowserTimeout},
		{"analyzer.timeout", config.Analyzer.Timeout},
		{"validation.timeout_per_city", config.Validation.TimeoutPerCity},
		{"validation.request_delay", config.Validation.RequestDelay},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", field.name, field.value)
		}
	}
	return nil
}

// Duration parses a duration config value, returning fallback when empty or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
