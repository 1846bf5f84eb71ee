package script

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

var errNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL.")

// fakeStore is an in-memory Store that runs scripts through a Go function
type fakeStore struct {
	mu        sync.Mutex
	scripts   map[string]string // digest -> body
	listeners []ConnectionListener

	existsCalls int
	loadCalls   int
	evalCalls   int
	evalDigests []string

	existsErr error
	loadErr   error
	evalErr   error

	// rejectBody makes ScriptLoad fail for that body only
	rejectBody string
	onLoad    func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{scripts: make(map[string]string)}
}

func (s *fakeStore) ScriptExists(ctx context.Context, digest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.existsCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.scripts[digest]
	return ok, nil
}

func (s *fakeStore) ScriptLoad(ctx context.Context, body string) (string, error) {
	s.mu.Lock()
	s.loadCalls++
	if s.loadErr != nil {
		err := s.loadErr
		s.mu.Unlock()
		return "", err
	}
	if s.rejectBody != "" && body == s.rejectBody {
		s.mu.Unlock()
		return "", errors.New("ERR Error compiling script")
	}
	digest := Digest(body)
	s.scripts[digest] = body
	onLoad := s.onLoad
	s.mu.Unlock()

	if onLoad != nil {
		onLoad()
	}
	return digest, nil
}

// EvalSha understands one script shape: "return ARGV[1]+ARGV[2]"
func (s *fakeStore) EvalSha(ctx context.Context, digest string, keys []string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evalCalls++
	s.evalDigests = append(s.evalDigests, digest)
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	body, ok := s.scripts[digest]
	if !ok {
		return nil, errNoScript
	}
	if body != sumScript {
		return body, nil
	}

	var total int64
	for _, arg := range args {
		n, err := strconv.ParseInt(toString(arg), 10, 64)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return total, nil
}

func (s *fakeStore) Subscribe(listener ConnectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// flush forgets every loaded script, like SCRIPT FLUSH or a failover
func (s *fakeStore) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = make(map[string]string)
}

func (s *fakeStore) resetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls, s.loadCalls, s.evalCalls = 0, 0, 0
	s.evalDigests = nil
}

func (s *fakeStore) counts() (exists, load, eval int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsCalls, s.loadCalls, s.evalCalls
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

const sumScript = "return ARGV[1]+ARGV[2]"

// setupTestEngine creates an engine with an isolated Prometheus registry
func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	opts = append([]Option{WithMetrics(NewMetricsWithRegistry(prometheus.NewRegistry()))}, opts...)
	engine := NewEngine(store, nil, opts...)
	return engine, store
}

// waitIdle blocks until background loads and async executions are done
func waitIdle(e *Engine) {
	e.wg.Wait()
}
