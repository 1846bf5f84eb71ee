package script

import (
	"crypto/sha1"
	"encoding/hex"
)

// Digest returns the hex encoded SHA1 of a script body.
// Redis identifies loaded scripts by the same value, so the result can be
// sent back to the store for SCRIPT EXISTS and EVALSHA.
func Digest(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}
