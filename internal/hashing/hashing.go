// Package hashing provides the deterministic, collision-resistant content
// digest used for deduplication (C1 in the design).
package hashing

import (
	"encoding/hex"
	"strings"

	"lukechampine.com/blake3"
)

// Algorithm identifies a digest algorithm. The digest string produced by
// Hash is always prefixed with its algorithm tag so a future migration is
// expressible without breaking stored hashes.
const Algorithm = "blake3v1"

const digestSize = 32

// Hash returns the algorithm-tagged digest of b, in the form
// "blake3v1:<64 lowercase hex chars>".
func Hash(b []byte) string {
	sum := blake3.Sum256(b)
	return Algorithm + ":" + hex.EncodeToString(sum[:])
}

// Raw returns the 32 raw digest bytes of b, with no algorithm tag.
func Raw(b []byte) [digestSize]byte {
	return blake3.Sum256(b)
}

// Equal reports whether two tagged digests are identical.
func Equal(a, b string) bool {
	return a == b
}

// ParseAlgorithm returns the algorithm tag of a digest string produced by
// Hash, or "" if the digest carries no recognizable tag.
func ParseAlgorithm(digest string) string {
	i := strings.IndexByte(digest, ':')
	if i < 0 {
		return ""
	}
	return digest[:i]
}
