package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Space-Track client
type Config struct {
	// Catalog endpoint and credentials
	SpaceTrack SpaceTrackConfig `yaml:"spacetrack" json:"spacetrack"`

	// Outbound sliding-window gate
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Query proxy
	Server ServerConfig `yaml:"server" json:"server"`

	Output OutputConfig `yaml:"output" json:"output"`

	Batch BatchConfig `yaml:"batch" json:"batch"`

	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SpaceTrackConfig holds catalog-specific configuration
type SpaceTrackConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Identity   string        `yaml:"identity" json:"identity"`
	Password   string        `yaml:"password" json:"-"`
	LoginPath  string        `yaml:"login_path" json:"login_path"`
	LogoutPath string        `yaml:"logout_path" json:"logout_path"`
	QueryPath  string        `yaml:"query_path" json:"query_path"`
	UserAgent  string        `yaml:"user_agent" json:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds the outbound gate configuration
type RateLimitConfig struct {
	MaxCalls int           `yaml:"max_calls" json:"max_calls"`
	Period   time.Duration `yaml:"period" json:"period"`
	// Binding selects how waiting callers are suspended: "cooperative" or "blocking".
	Binding string `yaml:"binding" json:"binding"`
}

// RetryConfig holds retry behaviour for catalog requests
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// Strategy is exponential, linear or constant
	Strategy     string        `yaml:"strategy" json:"strategy"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// ServerConfig holds configuration for the query proxy
type ServerConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// OutputConfig holds where query results are written
type OutputConfig struct {
	Directory         string `yaml:"directory" json:"directory"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// BatchConfig holds configuration for concurrent batch runs
type BatchConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnThrottle bool `yaml:"on_throttle" json:"on_throttle"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SpaceTrack: SpaceTrackConfig{
			BaseURL:    "https://www.space-track.org",
			LoginPath:  "ajaxauth/login",
			LogoutPath: "ajaxauth/logout",
			QueryPath:  "basicspacedata/query",
			UserAgent:  "spacetrack-go/1.0",
			Timeout:    30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxCalls: 30,
			Period:   time.Minute,
			Binding:  "cooperative",
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			Strategy:     "exponential",
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			RequestsPerSecond: 5,
			Burst:             10,
			ShutdownTimeout:   10 * time.Second,
		},
		Output: OutputConfig{
			Directory: "./results",
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnThrottle: true,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from SPACETRACK_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	envString("SPACETRACK_BASE_URL", &c.SpaceTrack.BaseURL)
	envString("SPACETRACK_IDENTITY", &c.SpaceTrack.Identity)
	envString("SPACETRACK_PASSWORD", &c.SpaceTrack.Password)
	envString("SPACETRACK_USER_AGENT", &c.SpaceTrack.UserAgent)
	envString("SPACETRACK_RATE_BINDING", &c.RateLimit.Binding)
	envString("SPACETRACK_OUTPUT_DIR", &c.Output.Directory)
	envString("SPACETRACK_SERVER_HOST", &c.Server.Host)
	envString("SPACETRACK_LOG_LEVEL", &c.Logging.Level)
	envString("SPACETRACK_LOG_FILE", &c.Logging.File)

	errs = append(errs,
		envInt("SPACETRACK_MAX_CALLS", &c.RateLimit.MaxCalls),
		envDuration("SPACETRACK_PERIOD", &c.RateLimit.Period),
		envDuration("SPACETRACK_TIMEOUT", &c.SpaceTrack.Timeout),
		envInt("SPACETRACK_SERVER_PORT", &c.Server.Port),
		envInt("SPACETRACK_BATCH_WORKERS", &c.Batch.Workers),
	)

	if v := os.Getenv("SPACETRACK_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".spacetrack.yaml",
		".spacetrack.yml",
		filepath.Join(home, ".config", "spacetrack", "config.yaml"),
		filepath.Join(home, ".config", "spacetrack", "config.yml"),
		filepath.Join(home, ".spacetrack.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// checked here because they may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.SpaceTrack.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid base url %q", c.SpaceTrack.BaseURL))
	}
	if c.SpaceTrack.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.MaxCalls <= 0 {
		errs = append(errs, errors.New("max calls must be positive"))
	}
	if c.RateLimit.Period <= 0 {
		errs = append(errs, errors.New("rate limit period must be positive"))
	}
	switch strings.ToLower(c.RateLimit.Binding) {
	case "cooperative", "blocking":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit binding %q", c.RateLimit.Binding))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	switch strings.ToLower(c.Retry.Strategy) {
	case "", "exponential":
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
	case "linear", "constant":
	default:
		errs = append(errs, fmt.Errorf("unknown retry strategy %q", c.Retry.Strategy))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}
	if c.Server.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("server requests per second must be positive"))
	}
	if c.Server.Burst <= 0 {
		errs = append(errs, errors.New("server burst must be positive"))
	}

	if c.Batch.Workers <= 0 {
		errs = append(errs, errors.New("batch workers must be positive"))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// HasCredentials reports whether both identity and password are set.
func (c *Config) HasCredentials() bool {
	return c.SpaceTrack.Identity != "" && c.SpaceTrack.Password != ""
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.SpaceTrack.BaseURL = v
	}
	if v, ok := flags["identity"].(string); ok && v != "" {
		c.SpaceTrack.Identity = v
	}
	if v, ok := flags["max-calls"].(int); ok && v > 0 {
		c.RateLimit.MaxCalls = v
	}
	if v, ok := flags["period"].(time.Duration); ok && v > 0 {
		c.RateLimit.Period = v
	}
	if v, ok := flags["binding"].(string); ok && v != "" {
		c.RateLimit.Binding = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Batch.Workers = v
	}
	if v, ok := flags["host"].(string); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := flags["port"].(int); ok && v > 0 {
		c.Server.Port = v
	}
	if v, ok := flags["notify"].(bool); ok && v {
		c.Notifications.Enabled = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".spacetrack.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
