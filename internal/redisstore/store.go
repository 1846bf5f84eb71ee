package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/bherbruck/scriptcache/internal/script"
)

type connState int

const (
	stateUnknown connState = iota
	stateUp
	stateDown
)

// Store runs scripts on Redis and publishes connection lifecycle signals
type Store struct {
	client    redis.UniversalClient
	listeners []script.ConnectionListener
	state     connState
	mu        sync.Mutex
}

// New connects a store from config. A master name selects the sentinel
// failover client.
func New(cfg *Config) (*Store, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(opts)
	slog.Info("Redis client created",
		"addrs", opts.Addrs,
		"master_name", opts.MasterName,
		"db", opts.DB)

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client and installs the connection hook
func NewWithClient(client redis.UniversalClient) *Store {
	s := &Store{client: client}
	client.AddHook(&connectionHook{store: s})
	return s
}

// Client returns the underlying go-redis client
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Subscribe registers a listener for connect and error signals
func (s *Store) Subscribe(listener script.ConnectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// ScriptExists reports whether Redis has a script loaded under digest
func (s *Store) ScriptExists(ctx context.Context, digest string) (bool, error) {
	results, err := s.client.ScriptExists(ctx, digest).Result()
	if err != nil {
		return false, err
	}
	return len(results) > 0 && results[0], nil
}

// ScriptLoad uploads a script body and returns its digest
func (s *Store) ScriptLoad(ctx context.Context, body string) (string, error) {
	return s.client.ScriptLoad(ctx, body).Result()
}

// EvalSha runs a loaded script. A nil reply is returned as a nil result.
func (s *Store) EvalSha(ctx context.Context, digest string, keys []string, args []any) (any, error) {
	result, err := s.client.EvalSha(ctx, digest, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return result, err
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

// markUp emits OnConnect on the first healthy connection and after a failure
func (s *Store) markUp() {
	listeners, changed := s.transition(stateUp)
	if !changed {
		return
	}

	slog.Info("Redis connection established")
	for _, l := range listeners {
		l.OnConnect()
	}
}

// markDown emits OnError once per healthy period
func (s *Store) markDown(err error) {
	listeners, changed := s.transition(stateDown)
	if !changed {
		return
	}

	slog.Warn("Redis connection error", "error", err)
	for _, l := range listeners {
		l.OnError(err)
	}
}

func (s *Store) transition(to connState) ([]script.ConnectionListener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == to {
		return nil, false
	}
	s.state = to

	listeners := make([]script.ConnectionListener, len(s.listeners))
	copy(listeners, s.listeners)
	return listeners, true
}
