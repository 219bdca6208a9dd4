// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Logs       LogsConfig       `yaml:"logs"`
	Worker     WorkerConfig     `yaml:"worker"`
	Twilio     TwilioConfig     `yaml:"twilio"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port          string        `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	HashingSecret string        `yaml:"hashing_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

type StoreConfig struct {
	Dir              string `yaml:"dir"`
	MaxChecksPerUser int    `yaml:"max_checks_per_user"`
}

type LogsConfig struct {
	Dir string `yaml:"dir"`
}

type WorkerConfig struct {
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	RotationInterval time.Duration `yaml:"rotation_interval"`
}

// TwilioConfig carries the outbound SMS credentials and sender identity.
// APIURL exists so tests can point the client at a local server.
type TwilioConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AccountSID    string `yaml:"account_sid"`
	AuthToken     string `yaml:"auth_token"`
	FromPhone     string `yaml:"from_phone"`
	CountryPrefix string `yaml:"country_prefix"`
	APIURL        string `yaml:"api_url"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":3000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.TokenTTL == 0 {
		cfg.Server.TokenTTL = time.Hour
	}

	// Storage defaults
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "./.data"
	}
	if cfg.Store.MaxChecksPerUser == 0 {
		cfg.Store.MaxChecksPerUser = 5
	}
	if cfg.Logs.Dir == "" {
		cfg.Logs.Dir = "./.logs"
	}

	// Worker defaults
	if cfg.Worker.ProbeInterval == 0 {
		cfg.Worker.ProbeInterval = time.Minute
	}
	if cfg.Worker.RotationInterval == 0 {
		cfg.Worker.RotationInterval = 24 * time.Hour
	}

	// Twilio defaults
	if cfg.Twilio.CountryPrefix == "" {
		cfg.Twilio.CountryPrefix = "+1"
	}
	if cfg.Twilio.APIURL == "" {
		cfg.Twilio.APIURL = "https://api.twilio.com/2010-04-01"
	}

	// Prometheus defaults
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.HashingSecret == "" {
		return fmt.Errorf("server.hashing_secret is required")
	}
	if cfg.Server.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive")
	}
	if cfg.Store.MaxChecksPerUser < 1 {
		return fmt.Errorf("store.max_checks_per_user must be at least 1")
	}
	if cfg.Worker.ProbeInterval <= 0 {
		return fmt.Errorf("worker.probe_interval must be positive")
	}
	if cfg.Worker.RotationInterval <= 0 {
		return fmt.Errorf("worker.rotation_interval must be positive")
	}

	if cfg.Twilio.Enabled {
		if cfg.Twilio.AccountSID == "" {
			return fmt.Errorf("twilio.account_sid is required when Twilio is enabled")
		}
		if cfg.Twilio.AuthToken == "" {
			return fmt.Errorf("twilio.auth_token is required when Twilio is enabled")
		}
		if cfg.Twilio.FromPhone == "" {
			return fmt.Errorf("twilio.from_phone is required when Twilio is enabled")
		}
	}

	return nil
}
