package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the crawler
type Config struct {
	// Entry store location, output root and pacing
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// HTTP client settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Headless rendering settings
	Render RenderConfig `yaml:"render" json:"render"`

	// Optional requests-per-minute ceiling
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlConfig holds the settings that parametrize a run
type CrawlConfig struct {
	EntriesFile string  `yaml:"entries_file" json:"entries_file"`
	OutputDir   string  `yaml:"output_dir" json:"output_dir"`
	DelayMin    float64 `yaml:"delay_min" json:"delay_min"`
	DelayMax    float64 `yaml:"delay_max" json:"delay_max"`
	Strict      bool    `yaml:"strict" json:"strict"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

// RenderConfig holds headless browser configuration
type RenderConfig struct {
	// Enabled renders every entry, regardless of the entry's own render flag
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	SaveMetadata bool `yaml:"save_metadata" json:"save_metadata"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			EntriesFile: "config.yaml",
			OutputDir:   "output",
		},
		HTTP: HTTPConfig{
			Timeout:     30 * time.Second,
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			MaxAttempts: 3,
		},
		Render: RenderConfig{
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DelayBounds returns the normalized inter-request delay range.
// Negative bounds clamp to zero and an inverted range clamps the minimum down.
func (c CrawlConfig) DelayBounds() (time.Duration, time.Duration) {
	lo := max(0, c.DelayMin)
	hi := max(0, c.DelayMax)
	if lo > hi {
		lo = hi
	}
	return time.Duration(lo * float64(time.Second)), time.Duration(hi * float64(time.Second))
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("CHAINCRAWL_ENTRIES_FILE"); v != "" {
		c.Crawl.EntriesFile = v
	}
	if v := os.Getenv("CHAINCRAWL_OUTPUT_DIR"); v != "" {
		c.Crawl.OutputDir = v
	}
	if v := os.Getenv("CHAINCRAWL_DELAY_MIN"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINCRAWL_DELAY_MIN: %w", err))
		} else {
			c.Crawl.DelayMin = f
		}
	}
	if v := os.Getenv("CHAINCRAWL_DELAY_MAX"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINCRAWL_DELAY_MAX: %w", err))
		} else {
			c.Crawl.DelayMax = f
		}
	}
	if v := os.Getenv("CHAINCRAWL_STRICT"); v != "" {
		c.Crawl.Strict = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CHAINCRAWL_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("CHAINCRAWL_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINCRAWL_HTTP_TIMEOUT: %w", err))
		} else {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("CHAINCRAWL_RENDER"); v != "" {
		c.Render.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CHAINCRAWL_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINCRAWL_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("CHAINCRAWL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHAINCRAWL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No settings file, defaults apply
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a settings file in standard locations
func findConfigFile() string {
	locations := []string{
		".chaincrawl.yaml",
		".chaincrawl.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "chaincrawl", "config.yaml"),
			filepath.Join(home, ".chaincrawl.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.EntriesFile == "" {
		errs = append(errs, errors.New("entries file is required"))
	}
	if c.Crawl.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.HTTP.MaxAttempts < 1 {
		errs = append(errs, errors.New("http max attempts must be at least 1"))
	}
	if c.Render.Timeout <= 0 {
		errs = append(errs, errors.New("render timeout must be positive"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["entries"].(string); ok && v != "" {
		c.Crawl.EntriesFile = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Crawl.OutputDir = v
	}
	if v, ok := flags["delay-min"].(float64); ok {
		c.Crawl.DelayMin = v
	}
	if v, ok := flags["delay-max"].(float64); ok {
		c.Crawl.DelayMax = v
	}
	if v, ok := flags["strict"].(bool); ok {
		c.Crawl.Strict = v
	}
	if v, ok := flags["render"].(bool); ok {
		c.Render.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
