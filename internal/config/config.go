package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "TERRA"

	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultServerDBPath  = "terra-api.db"
	defaultAgentDBPath   = "terra-agent.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 12 * time.Hour
	defaultSyncInterval  = 5 * time.Minute
	defaultMaxAttempts   = 5
	defaultBackoffBase   = time.Second
	defaultBackoffCeil   = 2 * time.Minute
	defaultAPIBaseURL    = "http://127.0.0.1:8080"
	defaultRequestWindow = 30 * time.Second
)

// ServerConfig captures runtime configuration for the API server.
type ServerConfig struct {
	HTTPAddress   string
	DatabasePath  string
	SigningSecret string
	ProvisionKey  string
	TokenTTL      time.Duration
	LogLevel      string
}

// AgentConfig captures runtime configuration for the field-agent sync daemon.
type AgentConfig struct {
	APIBaseURL     string
	APIToken       string
	DatabasePath   string
	UserID         string
	SyncInterval   time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration
	LogLevel       string
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

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultServerDBPath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)

	configViper.SetDefault("api.base_url", defaultAPIBaseURL)
	configViper.SetDefault("api.request_timeout", defaultRequestWindow)
	configViper.SetDefault("agent.database_path", defaultAgentDBPath)
	configViper.SetDefault("sync.interval", defaultSyncInterval)
	configViper.SetDefault("sync.max_attempts", defaultMaxAttempts)
	configViper.SetDefault("sync.backoff_base", defaultBackoffBase)
	configViper.SetDefault("sync.backoff_max", defaultBackoffCeil)
}

// LoadServer parses server runtime configuration from viper.
func LoadServer(configViper *viper.Viper) (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		ProvisionKey:  configViper.GetString("auth.provision_key"),
		TokenTTL:      configViper.GetDuration("auth.token_ttl"),
		LogLevel:      configViper.GetString("log.level"),
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

// LoadAgent parses agent runtime configuration from viper.
func LoadAgent(configViper *viper.Viper) (AgentConfig, error) {
	cfg := AgentConfig{
		APIBaseURL:     configViper.GetString("api.base_url"),
		APIToken:       configViper.GetString("api.token"),
		DatabasePath:   configViper.GetString("agent.database_path"),
		UserID:         configViper.GetString("agent.user_id"),
		SyncInterval:   configViper.GetDuration("sync.interval"),
		MaxAttempts:    configViper.GetInt("sync.max_attempts"),
		BackoffBase:    configViper.GetDuration("sync.backoff_base"),
		BackoffMax:     configViper.GetDuration("sync.backoff_max"),
		RequestTimeout: configViper.GetDuration("api.request_timeout"),
		LogLevel:       configViper.GetString("log.level"),
	}
	if err := cfg.validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

func (c AgentConfig) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("agent.database_path is required")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("agent.user_id is required")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("sync.max_attempts must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	return nil
}
