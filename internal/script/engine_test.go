package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestExecuteColdCache(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	result, err := engine.Execute(context.Background(), "sum", nil, []any{2, 3})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != int64(5) {
		t.Errorf("Expected result 5, got %v", result)
	}

	exists, load, eval := store.counts()
	if exists != 1 || load != 1 || eval != 1 {
		t.Errorf("Expected 1 exists, 1 load, 1 eval, got %d, %d, %d", exists, load, eval)
	}

	digest, ok := engine.cache.Get("sum")
	if !ok || digest != Digest(sumScript) {
		t.Errorf("Expected cache to hold %s, got %q", Digest(sumScript), digest)
	}
}

func TestExecuteWarmCache(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	if _, err := engine.Execute(context.Background(), "sum", nil, []any{1, 1}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	store.resetCounters()

	result, err := engine.Execute(context.Background(), "sum", nil, []any{"4", "5"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != int64(9) {
		t.Errorf("Expected result 9, got %v", result)
	}

	exists, load, eval := store.counts()
	if exists != 0 || load != 0 || eval != 1 {
		t.Errorf("Expected a single eval on warm cache, got %d, %d, %d", exists, load, eval)
	}
}

func TestExecuteUnknownScript(t *testing.T) {
	engine, store := setupTestEngine(t)

	_, err := engine.Execute(context.Background(), "missing", nil, nil)
	if !errors.Is(err, ErrUnknownScript) {
		t.Fatalf("Expected ErrUnknownScript, got %v", err)
	}

	exists, load, eval := store.counts()
	if exists+load+eval != 0 {
		t.Errorf("Expected no remote calls, got %d, %d, %d", exists, load, eval)
	}
}

func TestExecuteRecoversFromNoScript(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)
	engine.cache.Set("sum", "abc123", engine.cache.Generation())

	result, err := engine.Execute(context.Background(), "sum", nil, []any{2, 3})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != int64(5) {
		t.Errorf("Expected result 5, got %v", result)
	}

	exists, load, eval := store.counts()
	if exists != 0 || load != 1 || eval != 2 {
		t.Errorf("Expected 0 exists, 1 force load, 2 evals, got %d, %d, %d", exists, load, eval)
	}

	want := []string{"abc123", Digest(sumScript)}
	if len(store.evalDigests) != 2 || store.evalDigests[0] != want[0] || store.evalDigests[1] != want[1] {
		t.Errorf("Expected eval digests %v, got %v", want, store.evalDigests)
	}

	if digest, _ := engine.cache.Get("sum"); digest != Digest(sumScript) {
		t.Errorf("Expected cache updated to %s, got %s", Digest(sumScript), digest)
	}
}

func TestExecuteRecoveryAfterFlush(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	if _, err := engine.Execute(context.Background(), "sum", nil, []any{1, 2}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	store.flush()
	store.resetCounters()

	result, err := engine.Execute(context.Background(), "sum", nil, []any{1, 2})
	if err != nil {
		t.Fatalf("Execute after flush failed: %v", err)
	}
	if result != int64(3) {
		t.Errorf("Expected result 3, got %v", result)
	}
	if _, load, eval := store.counts(); load != 1 || eval != 2 {
		t.Errorf("Expected 1 reload and 2 evals, got %d and %d", load, eval)
	}
}

func TestExecuteRetriesOnlyOnce(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)
	engine.cache.Set("sum", "abc123", engine.cache.Generation())
	store.evalErr = errNoScript

	_, err := engine.Execute(context.Background(), "sum", nil, nil)
	if !IsScriptNotKnown(err) {
		t.Fatalf("Expected second NOSCRIPT to be delivered, got %v", err)
	}
	if _, load, eval := store.counts(); load != 1 || eval != 2 {
		t.Errorf("Expected exactly one reload and one retry, got %d loads and %d evals", load, eval)
	}
}

func TestExecuteOtherErrorsPassThrough(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)
	engine.cache.Set("sum", "abc123", engine.cache.Generation())

	wantErr := errors.New("ERR Error running script")
	store.evalErr = wantErr

	_, err := engine.Execute(context.Background(), "sum", nil, nil)
	if err != wantErr {
		t.Fatalf("Expected error unchanged, got %v", err)
	}
	if _, load, eval := store.counts(); load != 0 || eval != 1 {
		t.Errorf("Expected no reload and one eval, got %d and %d", load, eval)
	}
	if digest, _ := engine.cache.Get("sum"); digest != "abc123" {
		t.Errorf("Expected cache untouched, got %s", digest)
	}
}

func TestExecuteLoadFailure(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)
	wantErr := errors.New("dial tcp: connection refused")
	store.loadErr = wantErr

	if _, err := engine.Execute(context.Background(), "sum", nil, nil); err != wantErr {
		t.Fatalf("Expected load error unchanged, got %v", err)
	}
	if _, _, eval := store.counts(); eval != 0 {
		t.Errorf("Expected no eval after failed load, got %d", eval)
	}
	if engine.cache.Len() != 0 {
		t.Error("Expected cache to stay cold")
	}
}

func TestExecuteByDigest(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	if _, err := engine.ExecuteByDigest(context.Background(), "sum", nil, nil); !errors.Is(err, ErrUnknownDigest) {
		t.Fatalf("Expected ErrUnknownDigest, got %v", err)
	}
	if _, _, eval := store.counts(); eval != 0 {
		t.Errorf("Expected no eval without digest, got %d", eval)
	}

	if _, err := engine.Execute(context.Background(), "sum", nil, []any{1, 1}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	result, err := engine.ExecuteByDigest(context.Background(), "sum", nil, []any{3, 4})
	if err != nil {
		t.Fatalf("ExecuteByDigest failed: %v", err)
	}
	if result != int64(7) {
		t.Errorf("Expected result 7, got %v", result)
	}

	store.flush()
	store.resetCounters()

	if _, err := engine.ExecuteByDigest(context.Background(), "sum", nil, nil); !IsScriptNotKnown(err) {
		t.Fatalf("Expected NOSCRIPT to be surfaced, got %v", err)
	}
	if _, load, _ := store.counts(); load != 0 {
		t.Errorf("Expected no recovery on digest path, got %d loads", load)
	}
}

func TestExecuteAsync(t *testing.T) {
	engine, _ := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	done := make(chan struct{})
	var result any
	var resultErr error
	engine.ExecuteAsync(context.Background(), "sum", nil, []any{2, 3}, func(res any, err error) {
		result, resultErr = res, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for callback")
	}
	if resultErr != nil || result != int64(5) {
		t.Errorf("Expected 5, got %v (err=%v)", result, resultErr)
	}

	if err := engine.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	var stoppedErr error
	engine.ExecuteAsync(context.Background(), "sum", nil, nil, func(_ any, err error) {
		stoppedErr = err
	})
	if !errors.Is(stoppedErr, ErrEngineStopped) {
		t.Errorf("Expected ErrEngineStopped after shutdown, got %v", stoppedErr)
	}
}

func TestRegisterLoadsInBackground(t *testing.T) {
	engine, store := setupTestEngine(t)

	engine.Register(map[string]string{"sum": sumScript, "one": "return 1"})
	waitIdle(engine)

	if engine.cache.Len() != 2 {
		t.Errorf("Expected both scripts warm after background load, got %v", engine.cache.Snapshot())
	}
	if _, load, _ := store.counts(); load != 2 {
		t.Errorf("Expected 2 uploads, got %d", load)
	}

	store.resetCounters()
	before := engine.cache.Snapshot()
	engine.Register(map[string]string{"sum": sumScript, "one": "return 1"})
	waitIdle(engine)

	if _, load, _ := store.counts(); load != 0 {
		t.Errorf("Expected no uploads when re-registering identical scripts, got %d", load)
	}
	after := engine.cache.Snapshot()
	for name, digest := range before {
		if after[name] != digest {
			t.Errorf("Expected digest for %s unchanged, got %s -> %s", name, digest, after[name])
		}
	}
}

func TestReRegisterReplacesDigest(t *testing.T) {
	engine, _ := setupTestEngine(t)

	engine.RegisterOne("job", "return 1")
	waitIdle(engine)
	engine.RegisterOne("job", "return 2")
	waitIdle(engine)

	if digest, _ := engine.cache.Get("job"); digest != Digest("return 2") {
		t.Errorf("Expected digest of new body, got %s", digest)
	}
}

func TestOnErrorClearsCache(t *testing.T) {
	engine, _ := setupTestEngine(t)
	engine.Register(map[string]string{"a": "return 1", "b": "return 2"})
	waitIdle(engine)

	if engine.cache.Len() != 2 {
		t.Fatalf("Expected warm cache, got %d entries", engine.cache.Len())
	}

	engine.OnError(errors.New("connection reset by peer"))

	if engine.cache.Len() != 0 {
		t.Errorf("Expected empty cache after connection error, got %v", engine.cache.Snapshot())
	}
}

func TestOnConnectRewarmsCache(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.Register(map[string]string{"a": "return 1", "b": "return 2", "sum": sumScript})

	engine.OnError(errors.New("failover"))
	store.flush()
	engine.OnConnect()
	waitIdle(engine)

	status := engine.Status()
	if len(status) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(status))
	}
	for _, s := range status {
		if !s.Warm {
			t.Errorf("Expected %s to be warm after reconnect", s.Name)
		}
	}
}

func TestWarmLoadsEveryScript(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.Register(map[string]string{"a": "return 1", "b": "return 2", "sum": sumScript})

	if err := engine.Warm(context.Background()); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	for _, s := range engine.Status() {
		if !s.Warm {
			t.Errorf("Expected %s to be warm", s.Name)
		}
	}
	if exists, load, eval := store.counts(); exists != 3 || load != 3 || eval != 0 {
		t.Errorf("Expected 3 exists checks, 3 uploads and no executions, got %d/%d/%d", exists, load, eval)
	}

	// A second pass finds everything loaded and uploads nothing
	store.resetCounters()
	if err := engine.Warm(context.Background()); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if _, load, _ := store.counts(); load != 0 {
		t.Errorf("Expected no uploads on second pass, got %d", load)
	}
}

func TestWarmStopsAtFirstFailure(t *testing.T) {
	var reported []error
	engine, store := setupTestEngine(t, WithLoadErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	engine.registry.Register(map[string]string{"a": "return 1", "b": "return 2", "c": "return 3"})
	store.rejectBody = "return 2"

	err := engine.Warm(context.Background())
	if err == nil {
		t.Fatal("Expected Warm to fail")
	}
	if !strings.Contains(err.Error(), `"b"`) {
		t.Errorf("Expected error to name the failing script, got %v", err)
	}
	if len(reported) != 1 {
		t.Errorf("Expected failure to be reported once, got %d", len(reported))
	}

	want := map[string]bool{"a": true, "b": false, "c": false}
	for _, s := range engine.Status() {
		if s.Warm != want[s.Name] {
			t.Errorf("Script %s warm = %v, want %v", s.Name, s.Warm, want[s.Name])
		}
	}

	// Scripts after the failure are not attempted
	if _, load, _ := store.counts(); load != 2 {
		t.Errorf("Expected 2 upload attempts (a, b), got %d", load)
	}
}

func TestOnConnectFailureIsReported(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	engine, store := setupTestEngine(t, WithLoadErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))
	engine.registry.RegisterOne("sum", sumScript)
	store.loadErr = errors.New("LOADING Redis is loading the dataset in memory")

	engine.OnConnect()
	waitIdle(engine)

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 {
		t.Fatalf("Expected 1 reported load error, got %d", len(reported))
	}
	if engine.cache.Len() != 0 {
		t.Error("Expected cache to stay cold after failed bulk load")
	}

	store.loadErr = nil
	if _, err := engine.Execute(context.Background(), "sum", nil, []any{1, 2}); err != nil {
		t.Errorf("Expected lazy recovery on next execute, got %v", err)
	}
}

func TestInvalidationDuringLoadKeepsCacheCold(t *testing.T) {
	engine, store := setupTestEngine(t)
	engine.registry.RegisterOne("sum", sumScript)

	// The connection drops while the upload is in flight
	store.onLoad = func() {
		engine.OnError(errors.New("connection lost"))
	}

	result, err := engine.Execute(context.Background(), "sum", nil, []any{2, 3})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != int64(5) {
		t.Errorf("Expected result 5 from this call's own digest, got %v", result)
	}
	if engine.cache.Len() != 0 {
		t.Errorf("Expected digest confirmed before invalidation to be dropped, got %v", engine.cache.Snapshot())
	}
}

func TestNewEngineSubscribes(t *testing.T) {
	engine, store := setupTestEngine(t)

	if len(store.listeners) != 1 || store.listeners[0] != engine {
		t.Errorf("Expected engine to subscribe to store once, got %v", store.listeners)
	}
}

func TestRegisterDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"sum.lua":     sumScript,
		"incr.lua":    "return redis.call('INCR', KEYS[1])",
		"noext":       "return 0",
		".hidden.lua": "return 'hidden'",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.lua"), 0o755); err != nil {
		t.Fatal(err)
	}

	engine, _ := setupTestEngine(t)
	count, err := engine.RegisterDir(dir)
	if err != nil {
		t.Fatalf("RegisterDir failed: %v", err)
	}
	waitIdle(engine)

	if count != 3 {
		t.Errorf("Expected 3 scripts, got %d", count)
	}
	for _, name := range []string{"sum", "incr", "noext"} {
		if _, ok := engine.registry.Get(name); !ok {
			t.Errorf("Expected script %s to be registered", name)
		}
	}
	if _, ok := engine.registry.Get(".hidden"); ok {
		t.Error("Expected dotfile to be ignored")
	}
	if _, ok := engine.registry.Get("nested"); ok {
		t.Error("Expected subdirectory to be ignored")
	}

	result, err := engine.Execute(context.Background(), "sum", nil, []any{10, 5})
	if err != nil || result != int64(15) {
		t.Errorf("Expected 15, got %v (err=%v)", result, err)
	}
}

func TestRegisterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whatever.txt")
	if err := os.WriteFile(path, []byte(sumScript), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, _ := setupTestEngine(t)
	if err := engine.RegisterFile("adder", path); err != nil {
		t.Fatalf("RegisterFile failed: %v", err)
	}
	waitIdle(engine)

	if body, ok := engine.registry.Get("adder"); !ok || body != sumScript {
		t.Errorf("Expected adder to be registered with file contents, got %q", body)
	}

	if err := engine.RegisterFile("missing", filepath.Join(t.TempDir(), "nope.lua")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadTimeoutConfig(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"2s", 2 * time.Second},
		{"garbage", 5 * time.Second},
		{"1ms", 100 * time.Millisecond},
		{"1h", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := &Config{LoadTimeout: tt.value}
			if got := cfg.loadTimeout(); got != tt.want {
				t.Errorf("loadTimeout(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
