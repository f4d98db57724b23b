// Package fingerprint computes content digests used as dataset uniqueness keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex encoded fingerprint.
const Size = sha256.Size * 2

// Sum returns the hex encoded SHA-256 digest of data. The caller keeps
// ownership of data; nothing is retained.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
