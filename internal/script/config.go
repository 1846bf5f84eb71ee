package script

import (
	"log/slog"
	"time"
)

const defaultLoadTimeout = 5 * time.Second

// Config holds script engine configuration
type Config struct {
	LoadTimeout string `env:"SCRIPT_LOAD_TIMEOUT" flag:"script-load-timeout" default:"5s" desc:"Timeout for background bulk script loads"`
	Dir         string `env:"SCRIPT_DIR" flag:"script-dir" desc:"Directory of scripts to register on startup (one script per file)"`
}

// loadTimeout parses the bulk load timeout, clamped to 100ms..5m
func (c *Config) loadTimeout() time.Duration {
	if c == nil || c.LoadTimeout == "" {
		return defaultLoadTimeout
	}

	timeout, err := time.ParseDuration(c.LoadTimeout)
	if err != nil {
		slog.Warn("Invalid SCRIPT_LOAD_TIMEOUT, using default",
			"value", c.LoadTimeout,
			"error", err,
			"default", defaultLoadTimeout)
		return defaultLoadTimeout
	}

	if timeout < 100*time.Millisecond {
		slog.Warn("SCRIPT_LOAD_TIMEOUT too low, using minimum",
			"value", timeout,
			"minimum", "100ms")
		return 100 * time.Millisecond
	}
	if timeout > 5*time.Minute {
		slog.Warn("SCRIPT_LOAD_TIMEOUT too high, using maximum",
			"value", timeout,
			"maximum", "5m")
		return 5 * time.Minute
	}

	return timeout
}
