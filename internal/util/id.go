package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 32 hex character identifier, optionally namespaced with a
// short entity prefix ("biz", "veh", "job", ...).
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
