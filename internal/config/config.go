package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "IOTUX"
	defaultAPIBaseURL       = "https://api.iotux.app"
	defaultDatabasePath     = "iotux.db"
	defaultLogLevel         = "info"
	defaultPollInterval     = 10 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultDebugHTTPAddress = ""
)

// AppConfig captures runtime configuration for the iotUx client.
type AppConfig struct {
	APIBaseURL       string
	DatabasePath     string
	LogLevel         string
	PollInterval     time.Duration
	ProbeTimeout     time.Duration
	RequestTimeout   time.Duration
	DebugHTTPAddress string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("api.base_url", defaultAPIBaseURL)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("sync.poll_interval", defaultPollInterval)
	configViper.SetDefault("network.probe_timeout", defaultProbeTimeout)
	configViper.SetDefault("api.request_timeout", defaultRequestTimeout)
	configViper.SetDefault("debug.http_address", defaultDebugHTTPAddress)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		APIBaseURL:       configViper.GetString("api.base_url"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		PollInterval:     configViper.GetDuration("sync.poll_interval"),
		ProbeTimeout:     configViper.GetDuration("network.probe_timeout"),
		RequestTimeout:   configViper.GetDuration("api.request_timeout"),
		DebugHTTPAddress: configViper.GetString("debug.http_address"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("network.probe_timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	return nil
}
