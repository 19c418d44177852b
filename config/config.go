package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Site    SiteConfig    `mapstructure:"site" yaml:"site"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode" yaml:"mode"`
	Level string `mapstructure:"level" yaml:"level"`
}

// SiteConfig describes the remote puzzle site
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	UserAgent  string `mapstructure:"user_agent" yaml:"user_agent"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// StorageConfig holds the locations of the persisted databases
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// SessionConfig controls where the session cookie comes from
type SessionConfig struct {
	EnvVar    string `mapstructure:"env_var" yaml:"env_var"`
	InputFile string `mapstructure:"input_file" yaml:"input_file"`
}

// RunnerConfig holds the default part runner options
type RunnerConfig struct {
	Submit         bool `mapstructure:"submit" yaml:"submit"`
	Concurrency    bool `mapstructure:"concurrency" yaml:"concurrency"`
	PrintResults   bool `mapstructure:"print_results" yaml:"print_results"`
	ResultsInOrder bool `mapstructure:"results_in_order" yaml:"results_in_order"`
	Time           bool `mapstructure:"time" yaml:"time"`
}

// SandboxConfig holds the safe-run configuration
type SandboxConfig struct {
	Host         string   `mapstructure:"host" yaml:"host"`
	Runtime      string   `mapstructure:"runtime" yaml:"runtime"`
	RuntimeArgs  []string `mapstructure:"runtime_args" yaml:"runtime_args"`
	RuntimeFlags []string `mapstructure:"runtime_flags" yaml:"runtime_flags"`
	TestArgs     []string `mapstructure:"test_args" yaml:"test_args"`
}

// MCPConfig holds the MCP server configuration
type MCPConfig struct {
	Transport     string `mapstructure:"transport" yaml:"transport"`
	HTTPPort      int    `mapstructure:"http_port" yaml:"http_port"`
	SubmitEnabled bool   `mapstructure:"submit_enabled" yaml:"submit_enabled"`
}

// New loads and validates the application configuration from the default
// search paths.
func New() (*Config, error) {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "aocd"))
	}
	return Load(paths...)
}

// Load reads aocd.yaml from the first of paths that has one, applies
// AOCD_* environment overrides and validates the result.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("aocd")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("aocd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.mode", "development")
	v.SetDefault("logging.level", "warn")

	v.SetDefault("site.base_url", "https://adventofcode.com")
	v.SetDefault("site.user_agent", "github.com/isdmx/aocd")
	v.SetDefault("site.timeout_sec", 30)

	v.SetDefault("storage.data_dir", defaultDir(os.UserConfigDir))
	v.SetDefault("storage.cache_dir", defaultDir(os.UserCacheDir))

	v.SetDefault("session.env_var", "AOC_SESSION")
	v.SetDefault("session.input_file", "")

	v.SetDefault("runner.submit", false)
	v.SetDefault("runner.concurrency", false)
	v.SetDefault("runner.print_results", true)
	v.SetDefault("runner.results_in_order", true)
	v.SetDefault("runner.time", false)

	v.SetDefault("sandbox.host", "localhost")
	v.SetDefault("sandbox.runtime", "deno")
	v.SetDefault("sandbox.runtime_args", []string{"run"})
	v.SetDefault("sandbox.runtime_flags", []string{})
	v.SetDefault("sandbox.test_args", []string{"test"})

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.http_port", 8080)
	v.SetDefault("mcp.submit_enabled", false)
}

func defaultDir(base func() (string, error)) string {
	dir, err := base()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "aocd")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid site.base_url: %q", c.Site.BaseURL)
	}

	if c.Site.TimeoutSec <= 0 {
		return fmt.Errorf("site.timeout_sec must be positive, got: %d", c.Site.TimeoutSec)
	}

	if c.Storage.DataDir == "" || c.Storage.CacheDir == "" {
		return fmt.Errorf("storage.data_dir and storage.cache_dir must be set")
	}

	if c.Sandbox.Host == "" {
		return fmt.Errorf("sandbox.host must be set")
	}

	if c.Sandbox.Runtime == "" {
		return fmt.Errorf("sandbox.runtime must be set")
	}

	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	return nil
}

// GetTimeout returns the site request timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Site.TimeoutSec) * time.Second
}

// MainDBPath is the database holding the session cookie.
func (c *Config) MainDBPath() string {
	return filepath.Join(c.Storage.DataDir, "main.db")
}

// CacheDBPath is the database holding cached inputs and sent solutions.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Storage.CacheDir, "cache.db")
}
