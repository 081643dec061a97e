package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ReplayKey identifies a cached upstream response.
type ReplayKey struct {
	Hash string
}

// String is the key used in Redis or the memory map: replay:<HASH_HEX>
func (k ReplayKey) String() string {
	return "replay:" + k.Hash
}

// BuildReplayKey hashes the upstream base URL and the raw request body.
// The credential is deliberately not part of the key.
func BuildReplayKey(baseURL string, body []byte) ReplayKey {
	h := sha256.New()
	h.Write([]byte("base:" + strings.TrimRight(baseURL, "/") + "|body:"))
	h.Write(body)

	return ReplayKey{Hash: hex.EncodeToString(h.Sum(nil))}
}
