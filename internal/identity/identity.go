// Package identity generates opaque, unguessable identifiers for jobs and
// sessions.
package identity

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes is the amount of entropy backing each generated identifier,
// matching the 160-bit tokens used upstream.
const tokenBytes = 20

// Generate returns a URL-safe, unpadded base64 token derived from
// crypto/rand. Panics if the system RNG is unavailable, since a broken RNG
// makes the process unsafe to keep running.
func Generate() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("identity: system RNG unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
