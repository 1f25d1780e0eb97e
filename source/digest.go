package source

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/miampf/schnuffel/hosterr"
)

// Digest returns the lowercase hex SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify checks b against a pinned hex SHA-256 digest. An empty pin accepts
// anything.
func Verify(b []byte, pin string) error {
	pin = strings.ToLower(strings.TrimSpace(pin))
	if pin == "" {
		return nil
	}
	if got := Digest(b); got != pin {
		return hosterr.New("source.Verify", hosterr.KindLoad, hosterr.CodeIntegrityMismatch,
			"module digest does not match pin").
			WithDetails(map[string]any{"want": pin, "got": got})
	}
	return nil
}
