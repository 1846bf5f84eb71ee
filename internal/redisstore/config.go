package redisstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addrs            string `env:"REDIS_ADDRS" flag:"redis-addrs" default:"localhost:6379" desc:"Comma separated Redis addresses (sentinel addresses when a master name is set)"`
	MasterName       string `env:"REDIS_MASTER_NAME" flag:"redis-master-name" desc:"Sentinel master name, enables the failover client"`
	Username         string `env:"REDIS_USERNAME" flag:"redis-username" desc:"Redis ACL username"`
	Password         string `env:"REDIS_PASSWORD" flag:"redis-password" desc:"Redis password"`
	SentinelPassword string `env:"REDIS_SENTINEL_PASSWORD" flag:"redis-sentinel-password" desc:"Password for sentinel nodes"`
	DB               int    `env:"REDIS_DB" flag:"redis-db" default:"0" desc:"Redis database number"`
	DialTimeout      string `env:"REDIS_DIAL_TIMEOUT" flag:"redis-dial-timeout" default:"5s" desc:"Timeout for establishing connections"`
}

// Options builds go-redis universal options from the config
func (c *Config) Options() (*redis.UniversalOptions, error) {
	var addrs []string
	for _, addr := range strings.Split(c.Addrs, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("at least one redis address is required")
	}

	opts := &redis.UniversalOptions{
		Addrs:            addrs,
		MasterName:       c.MasterName,
		Username:         c.Username,
		Password:         c.Password,
		SentinelPassword: c.SentinelPassword,
		DB:               c.DB,
	}

	if c.DialTimeout != "" {
		timeout, err := time.ParseDuration(c.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid redis dial timeout %q: %w", c.DialTimeout, err)
		}
		opts.DialTimeout = timeout
	}

	return opts, nil
}
