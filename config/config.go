// Package config loads the server configuration.
//
// Sources, lowest precedence first:
//  1. `default` struct tags
//  2. an optional YAML file
//  3. environment variables named by `env` (or `envAlt`) struct tags
//
// The CLI loads a local .env file into the environment before calling Load.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout must cover the longest batch.
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"10m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxBodyBytes caps the size of a batch request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"SERVER_MAX_BODY_BYTES" default:"10485760"`

	// AllowedOrigins is a comma-separated list in the environment.
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// EngineConfig identifies the company data file and how the poster
// presents itself to the engine.
type EngineConfig struct {
	DataFile   string `yaml:"data_file" env:"ENGINE_DATA_FILE" envAlt:"SAGE_DATA_FILE"`
	AppName    string `yaml:"app_name" env:"ENGINE_APP_NAME" default:"Sage 50 SDK Web API"`
	AppID      string `yaml:"app_id" env:"ENGINE_APP_ID" default:"SASWA"`
	AppVersion int    `yaml:"app_version" env:"ENGINE_APP_VERSION" default:"1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
