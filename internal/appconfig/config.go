package appconfig

import (
	"github.com/bherbruck/scriptcache/internal/api"
	"github.com/bherbruck/scriptcache/internal/redisstore"
	"github.com/bherbruck/scriptcache/internal/script"
	"github.com/bherbruck/scriptcache/internal/storage"
)

// Config holds all application configuration
type Config struct {
	Version    bool   `flag:"version,v" desc:"Show version and exit"`
	Token      bool   `flag:"token" desc:"Print an admin API token signed with the configured secret and exit"`
	ConfigFile string `env:"CONFIG_FILE" flag:"config,c" desc:"Path to YAML script manifest for provisioning"`

	Redis    redisstore.Config      `desc:"Redis connection settings"`
	Script   script.Config          `desc:"Script engine settings"`
	Database storage.DatabaseConfig `desc:"Script storage settings"`
	API      api.Config             `desc:"HTTP API server settings"`
	Logging  LogConfig              `desc:"Logging settings"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" flag:"log-level" default:"info" desc:"Log level (debug, info, warn, error)"`
	Format string `env:"LOG_FORMAT" flag:"log-format" default:"text" desc:"Log format (text, json)"`
}

// PostParse runs post-parsing logic for all sub-configs
func (c *Config) PostParse() error {
	// Apply database defaults
	if err := c.Database.PostParse(); err != nil {
		return err
	}

	// Apply API defaults (JWT secret generation)
	if err := c.API.PostParse(); err != nil {
		return err
	}

	return nil
}
