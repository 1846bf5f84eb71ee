package script

import (
	"context"
	"errors"
	"strings"
)

// Store is the remote key/value store that scripts are loaded into and run on
type Store interface {
	// ScriptExists reports whether a script with the given digest is loaded
	ScriptExists(ctx context.Context, digest string) (bool, error)

	// ScriptLoad uploads a script body and returns the digest the store assigned
	ScriptLoad(ctx context.Context, body string) (string, error)

	// EvalSha runs a previously loaded script by digest
	EvalSha(ctx context.Context, digest string, keys []string, args []any) (any, error)
}

// ConnectionListener receives connection lifecycle signals from a store
type ConnectionListener interface {
	// OnConnect is called when a connection to the store is (re)established
	OnConnect()

	// OnError is called when the connection to the store fails
	OnError(err error)
}

// Notifier is implemented by stores that publish connection lifecycle signals
type Notifier interface {
	Subscribe(listener ConnectionListener)
}

// noScriptPrefix is the error code Redis replies with for an unknown digest
const noScriptPrefix = "NOSCRIPT"

var (
	// ErrUnknownScript is returned when executing a name that was never registered
	ErrUnknownScript = errors.New("no such script")

	// ErrUnknownDigest is returned by ExecuteByDigest before a digest is cached
	ErrUnknownDigest = errors.New("no cached digest for script")
)

// IsScriptNotKnown reports whether err is the store saying it has no script
// under the requested digest. Evicted and never-loaded scripts look the same.
func IsScriptNotKnown(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), noScriptPrefix)
}
