// Package util provides common utilities for proxydeck.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Web server
	WebHost string `mapstructure:"web_host"`
	WebPort int    `mapstructure:"web_port"`

	Provider    ProviderConfig    `mapstructure:"provider"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`

	// Background re-validation of stored credentials (daemon mode)
	ConnectionCheckInterval time.Duration `mapstructure:"connection_check_interval"`
}

// ProviderConfig describes the rotating-proxy gateway and its diagnostic endpoint.
type ProviderConfig struct {
	GatewayHost   string        `mapstructure:"gateway_host"`
	GatewayPort   int           `mapstructure:"gateway_port"`
	Scheme        string        `mapstructure:"scheme"`
	DiagnosticURL string        `mapstructure:"diagnostic_url"`
	Timeout       time.Duration `mapstructure:"timeout"` // 0 = transport default
}

// GatewayAddr returns host:port of the provider gateway.
func (p ProviderConfig) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", p.GatewayHost, p.GatewayPort)
}

// AcquisitionConfig holds batch acquisition defaults.
type AcquisitionConfig struct {
	DefaultEndpoints   int  `mapstructure:"default_endpoints"`
	MaxEndpoints       int  `mapstructure:"max_endpoints"`
	StopOnFirstFailure bool `mapstructure:"stop_on_first_failure"`
	Concurrency        int  `mapstructure:"concurrency"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".proxydeck")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "proxydeck.log"),

		WebHost: "127.0.0.1",
		WebPort: 8080,

		Provider: ProviderConfig{
			GatewayHost:   "gate.smartproxy.com",
			GatewayPort:   7000,
			Scheme:        "http",
			DiagnosticURL: "https://ip.smartproxy.com/json",
		},

		Acquisition: AcquisitionConfig{
			DefaultEndpoints:   10,
			MaxEndpoints:       100,
			StopOnFirstFailure: false,
			Concurrency:        1,
		},

		ConnectionCheckInterval: 15 * time.Minute,
	}
}

// LoadConfig loads configuration from file and environment.
// An explicit cfgFile overrides the search path.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(cfg.DataDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("PROXYDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults in viper
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("web_host", cfg.WebHost)
	viper.SetDefault("web_port", cfg.WebPort)
	viper.SetDefault("provider.gateway_host", cfg.Provider.GatewayHost)
	viper.SetDefault("provider.gateway_port", cfg.Provider.GatewayPort)
	viper.SetDefault("provider.scheme", cfg.Provider.Scheme)
	viper.SetDefault("provider.diagnostic_url", cfg.Provider.DiagnosticURL)
	viper.SetDefault("provider.timeout", cfg.Provider.Timeout)
	viper.SetDefault("acquisition.default_endpoints", cfg.Acquisition.DefaultEndpoints)
	viper.SetDefault("acquisition.max_endpoints", cfg.Acquisition.MaxEndpoints)
	viper.SetDefault("acquisition.stop_on_first_failure", cfg.Acquisition.StopOnFirstFailure)
	viper.SetDefault("acquisition.concurrency", cfg.Acquisition.Concurrency)
	viper.SetDefault("connection_check_interval", cfg.ConnectionCheckInterval)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail much later at probe time.
func (c *Config) Validate() error {
	switch c.Provider.Scheme {
	case "http", "socks5":
	default:
		return fmt.Errorf("unsupported provider scheme %q (want http or socks5)", c.Provider.Scheme)
	}
	if c.Provider.GatewayHost == "" || c.Provider.GatewayPort <= 0 {
		return fmt.Errorf("provider gateway address is incomplete")
	}
	if c.Provider.DiagnosticURL == "" {
		return fmt.Errorf("provider diagnostic_url is required")
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must not be negative")
	}
	if c.Acquisition.MaxEndpoints < 1 {
		return fmt.Errorf("acquisition.max_endpoints must be at least 1")
	}
	if c.Acquisition.DefaultEndpoints < 1 || c.Acquisition.DefaultEndpoints > c.Acquisition.MaxEndpoints {
		return fmt.Errorf("acquisition.default_endpoints must be between 1 and %d", c.Acquisition.MaxEndpoints)
	}
	return nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
