// Package util holds small helpers shared by the admin and public handlers.
package util

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSessionID returns a random, URL-safe identifier with the given prefix.
func NewSessionID(prefix string) string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	id := base64.RawURLEncoding.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
