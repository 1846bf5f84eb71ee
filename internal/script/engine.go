package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrEngineStopped is delivered to async callers after Shutdown
var ErrEngineStopped = errors.New("script engine is shut down")

// Engine owns the registry and digest cache for one store connection and
// dispatches script executions against the store
type Engine struct {
	store       Store
	registry    *Registry
	cache       *ScriptCache
	loader      *Loader
	metrics     *Metrics
	loadTimeout time.Duration
	onLoadError func(error)
	wg          sync.WaitGroup
	shutdownMux sync.Mutex
	isShutdown  bool
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics sets the metrics collector (defaults to the global Prometheus registry)
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithLoadErrorHandler sets an observer for failed background bulk loads
func WithLoadErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onLoadError = fn
	}
}

// ScriptStatus describes the cache state of a registered script
type ScriptStatus struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Warm   bool   `json:"warm"`
}

// NewEngine creates a script engine for store. If the store publishes
// connection signals the engine subscribes to them.
func NewEngine(store Store, cfg *Config, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		registry:    NewRegistry(),
		loadTimeout: cfg.loadTimeout(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics()
	}
	e.cache = NewScriptCache(e.metrics)
	e.loader = NewLoader(store, e.metrics)

	if notifier, ok := store.(Notifier); ok {
		notifier.Subscribe(e)
	}

	slog.Info("Script engine created", "load_timeout", e.loadTimeout)
	return e
}

// Register merges scripts into the registry and loads them into the store
// in the background
func (e *Engine) Register(scripts map[string]string) {
	if len(scripts) == 0 {
		return
	}

	e.registry.Register(scripts)
	e.metrics.SetRegisteredScripts(e.registry.Len())
	slog.Debug("Scripts registered", "count", len(scripts), "total", e.registry.Len())

	batch := make(map[string]string, len(scripts))
	for name, body := range scripts {
		batch[name] = body
	}
	e.loadInBackground(batch)
}

// RegisterOne registers a single script
func (e *Engine) RegisterOne(name, body string) {
	e.Register(map[string]string{name: body})
}

// RegisterFile registers the contents of a file under name
func (e *Engine) RegisterFile(name, path string) error {
	body, err := ReadFile(path)
	if err != nil {
		return err
	}
	e.RegisterOne(name, body)
	return nil
}

// RegisterDir registers every script file in dir, see ReadDir
func (e *Engine) RegisterDir(dir string) (int, error) {
	scripts, err := ReadDir(dir)
	if err != nil {
		return 0, err
	}
	e.Register(scripts)
	slog.Info("Scripts registered from directory", "path", dir, "count", len(scripts))
	return len(scripts), nil
}

// Execute runs a registered script by digest, loading it first if no
// digest is cached and reloading it once if the store reports NOSCRIPT
func (e *Engine) Execute(ctx context.Context, name string, keys []string, args []any) (any, error) {
	startTime := time.Now()

	result, err := e.execute(ctx, name, keys, args)
	if errors.Is(err, ErrUnknownScript) {
		return nil, err
	}

	e.metrics.RecordExecution(name, time.Since(startTime).Seconds(), err == nil)
	if err != nil {
		slog.Debug("Script execution failed", "script", name, "error", err)
	}
	return result, err
}

func (e *Engine) execute(ctx context.Context, name string, keys []string, args []any) (any, error) {
	body, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}

	if digest, ok := e.cache.Get(name); ok {
		result, err := e.store.EvalSha(ctx, digest, keys, args)
		if !IsScriptNotKnown(err) {
			return result, err
		}

		// The store lost the script, most likely a failover to a new instance
		slog.Warn("Store does not know cached script, reloading",
			"script", name,
			"digest", digest)
		e.metrics.RecordRecovery(name)

		generation := e.cache.Generation()
		digest, err = e.loader.ForceLoad(ctx, body)
		if err != nil {
			return nil, err
		}
		e.remember(name, digest, generation)

		return e.store.EvalSha(ctx, digest, keys, args)
	}

	generation := e.cache.Generation()
	digest, err := e.loader.EnsureLoaded(ctx, body)
	if err != nil {
		return nil, err
	}
	e.remember(name, digest, generation)

	return e.store.EvalSha(ctx, digest, keys, args)
}

// ExecuteAsync runs Execute on a tracked goroutine and delivers the outcome
// to callback exactly once
func (e *Engine) ExecuteAsync(ctx context.Context, name string, keys []string, args []any, callback func(any, error)) {
	if !e.track() {
		callback(nil, ErrEngineStopped)
		return
	}

	go func() {
		defer e.wg.Done()
		callback(e.Execute(ctx, name, keys, args))
	}()
}

// ExecuteByDigest runs a script using only its cached digest. There is no
// load or recovery path: NOSCRIPT from the store is returned as is.
func (e *Engine) ExecuteByDigest(ctx context.Context, name string, keys []string, args []any) (any, error) {
	digest, ok := e.cache.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDigest, name)
	}
	return e.store.EvalSha(ctx, digest, keys, args)
}

// remember caches digest unless the cache was invalidated or the script was
// re-registered with a different body while it was loading
func (e *Engine) remember(name, digest string, generation uint64) {
	body, ok := e.registry.Get(name)
	if !ok || Digest(body) != digest {
		return
	}
	e.cache.Set(name, digest, generation)
}

// Warm runs a bulk ensure-loaded pass over every registered script
func (e *Engine) Warm(ctx context.Context) error {
	return e.warm(ctx, e.registry.Snapshot())
}

func (e *Engine) warm(ctx context.Context, scripts map[string]string) error {
	generation := e.cache.Generation()
	digests, err := e.loader.LoadAll(ctx, scripts)

	current := make(map[string]string, len(digests))
	for name, digest := range digests {
		if body, ok := e.registry.Get(name); ok && Digest(body) == digest {
			current[name] = digest
		}
	}
	e.cache.SetAll(current, generation)

	if err != nil {
		e.metrics.RecordBulkLoadFailure()
		slog.Warn("Script bulk load failed",
			"loaded", len(digests),
			"total", len(scripts),
			"error", err)
		if e.onLoadError != nil {
			e.onLoadError(err)
		}
		return err
	}

	slog.Debug("Scripts loaded into store", "count", len(digests))
	return nil
}

func (e *Engine) loadInBackground(scripts map[string]string) {
	if !e.track() {
		slog.Debug("Script engine is shutting down, skipping background load")
		return
	}

	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.loadTimeout)
		defer cancel()

		_ = e.warm(ctx, scripts)
	}()
}

// track registers a background task unless the engine is shutting down
func (e *Engine) track() bool {
	e.shutdownMux.Lock()
	defer e.shutdownMux.Unlock()

	if e.isShutdown {
		return false
	}
	e.wg.Add(1)
	return true
}

// OnConnect reloads every registered script after the store (re)connects
func (e *Engine) OnConnect() {
	slog.Info("Store connected, loading scripts", "scripts", e.registry.Len())
	e.loadInBackground(e.registry.Snapshot())
}

// OnError drops every cached digest. The next connection may point at an
// instance that has none of the scripts loaded.
func (e *Engine) OnError(err error) {
	dropped := e.cache.InvalidateAll()
	slog.Warn("Store connection error, digest cache cleared",
		"dropped", dropped,
		"error", err)
}

// InvalidateCache clears the digest cache on operator request
func (e *Engine) InvalidateCache() int {
	dropped := e.cache.InvalidateAll()
	slog.Info("Digest cache cleared", "dropped", dropped)
	return dropped
}

// Status returns the cache state of every registered script
func (e *Engine) Status() []ScriptStatus {
	digests := e.cache.Snapshot()
	names := e.registry.Names()

	statuses := make([]ScriptStatus, 0, len(names))
	for _, name := range names {
		digest, warm := digests[name]
		statuses = append(statuses, ScriptStatus{
			Name:   name,
			Digest: digest,
			Warm:   warm,
		})
	}
	return statuses
}

// Shutdown waits for background loads and async executions to finish
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownMux.Lock()
	if e.isShutdown {
		e.shutdownMux.Unlock()
		return nil
	}
	e.isShutdown = true
	e.shutdownMux.Unlock()

	slog.Info("Script engine shutdown initiated")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Script engine shutdown complete")
		return nil
	case <-ctx.Done():
		slog.Warn("Shutdown timeout reached, abandoning in-flight script work")
		return fmt.Errorf("failed to drain script engine: %w", ctx.Err())
	}
}
