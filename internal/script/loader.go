package script

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Loader makes sure script bodies are known to the store
type Loader struct {
	store   Store
	metrics *Metrics
}

// NewLoader creates a loader bound to a store
func NewLoader(store Store, metrics *Metrics) *Loader {
	return &Loader{
		store:   store,
		metrics: metrics,
	}
}

// EnsureLoaded returns the digest of body, uploading it only when the store
// does not already know it. A failed existence check falls through to upload.
func (l *Loader) EnsureLoaded(ctx context.Context, body string) (string, error) {
	digest := Digest(body)

	exists, err := l.store.ScriptExists(ctx, digest)
	if err != nil {
		slog.Debug("Script existence check failed, uploading", "digest", digest, "error", err)
	}
	if err == nil && exists {
		l.metrics.RecordLoad(false)
		return digest, nil
	}

	return l.ForceLoad(ctx, body)
}

// ForceLoad uploads body without checking whether the store already has it
func (l *Loader) ForceLoad(ctx context.Context, body string) (string, error) {
	digest, err := l.store.ScriptLoad(ctx, body)
	if err != nil {
		return "", err
	}
	l.metrics.RecordLoad(true)
	return digest, nil
}

// LoadAll ensures every script in order of name and stops on the first
// failure. Digests loaded before the failure are returned with the error.
func (l *Loader) LoadAll(ctx context.Context, scripts map[string]string) (map[string]string, error) {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	digests := make(map[string]string, len(names))
	for _, name := range names {
		digest, err := l.EnsureLoaded(ctx, scripts[name])
		if err != nil {
			return digests, fmt.Errorf("failed to load script %q: %w", name, err)
		}
		digests[name] = digest
	}
	return digests, nil
}
