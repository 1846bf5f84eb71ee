package redisstore

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"
)

// connectionHook turns dial results and command outcomes into store
// lifecycle transitions
type connectionHook struct {
	store *Store
}

func (h *connectionHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			if isDialError(err) {
				h.store.markDown(err)
			}
			return nil, err
		}
		h.store.markUp()
		return conn, nil
	}
}

func (h *connectionHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(err)
		return err
	}
}

func (h *connectionHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.observe(err)
		return err
	}
}

// observe records a command outcome. Pooled connections are reused without
// dialing, so a reply from the server is what brings the store back up.
func (h *connectionHook) observe(err error) {
	switch {
	case reachedServer(err):
		h.store.markUp()
	case isConnectionError(err):
		h.store.markDown(err)
	}
}

// reachedServer reports whether the command got a reply, including a nil
// reply or a Redis error reply such as NOSCRIPT
func reachedServer(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return true
	}
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}

// isConnectionError reports whether err came from the transport rather than
// from Redis itself or from the caller giving up. A read timeout means a
// slow reply, not a lost connection.
func isConnectionError(err error) bool {
	if err == nil || reachedServer(err) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return true
}

// isDialError reports whether a failed dial should mark the store down.
// Unlike commands, a dial that times out means the server is unreachable.
func isDialError(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, redis.ErrClosed)
}
