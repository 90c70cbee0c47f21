package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	valid "github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override file settings.
const EnvPrefix = "REQSPEC"

var (
	ErrInvalidBaseURL = errors.New("invalid base_url")
	ErrInvalidProxy   = errors.New("invalid proxy")
)

// Config represents the reqspec configuration.
//
// Keys are read through viper, which folds them to lower case, so variable
// names declared in a config file should be snake_case.
type Config struct {
	BaseURL         string            `mapstructure:"base_url"`
	Timeout         int               `mapstructure:"timeout"` // milliseconds
	FollowRedirects *bool             `mapstructure:"follow_redirects"`
	MaxRedirects    int               `mapstructure:"max_redirects"`
	ValidateSSL     *bool             `mapstructure:"validate_ssl"`
	Proxy           string            `mapstructure:"proxy"`
	RateLimit       float64           `mapstructure:"rate_limit"` // requests per second, 0 disables
	Headers         map[string]string `mapstructure:"headers"`    // Default headers for all requests
	Variables       map[string]any    `mapstructure:"variables"`  // Seed values for {{name}} placeholders
	EnvFile         string            `mapstructure:"env_file"`   // .env file merged into Variables
	Logging         LoggingConfig     `mapstructure:"logging"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"` // console or json
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".reqspec.yaml",
	".reqspec.yml",
	".reqspec.json",
	"reqspec.config.yaml",
	"reqspec.config.json",
}

// envKeys are the settings that can be overridden from the environment,
// e.g. REQSPEC_BASE_URL or REQSPEC_LOGGING_LEVEL.
var envKeys = []string{
	"base_url",
	"timeout",
	"follow_redirects",
	"max_redirects",
	"validate_ssl",
	"proxy",
	"rate_limit",
	"env_file",
	"logging.level",
	"logging.format",
	"logging.output_path",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// No file: defaults plus environment overrides
	return loadConfigFromFile("")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// loadConfigFromFile loads configuration from a specific file. An empty path
// reads only the environment.
func loadConfigFromFile(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config := DefaultConfig().Merge(&loaded)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks URL-shaped settings.
func (c *Config) Validate() error {
	if c.BaseURL != "" && !valid.IsRequestURL(c.BaseURL) {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Proxy != "" && !valid.IsRequestURL(c.Proxy) {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, c.Proxy)
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}

	// Merge headers
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	// Merge variables
	if len(other.Variables) > 0 {
		vars := make(map[string]any, len(c.Variables)+len(other.Variables))
		for k, v := range c.Variables {
			vars[k] = v
		}
		for k, v := range other.Variables {
			vars[k] = v
		}
		result.Variables = vars
	}

	if other.Logging.Level != "" {
		result.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		result.Logging.Format = other.Logging.Format
	}
	if other.Logging.OutputPath != "" {
		result.Logging.OutputPath = other.Logging.OutputPath
	}
	if other.Logging.DisableStacktrace {
		result.Logging.DisableStacktrace = true
	}
	if other.Logging.DisableConsole {
		result.Logging.DisableConsole = true
	}

	return &result
}
