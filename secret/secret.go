package secret

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"

	"github.com/jmcastano/twostep/internal"
)

// Digest returns the lowercase hex MD5 digest of plaintext. Deterministic
// and unsalted: identical inputs always share a digest, so two users with
// the same secret store the same value. This matches the digests already in
// deployed user stores; a deployment that can rewrite its stored digests
// should move to a salted, iterated KDF instead.
func Digest(plaintext string) string {
	sum := md5.Sum([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether plaintext digests to storedDigest. The comparison
// runs in constant time.
func Verify(plaintext, storedDigest string) bool {
	digest := Digest(plaintext)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

// Generate returns a random numeric secret of exactly n digits, drawn from
// the same primitive that produces challenge codes.
func Generate(n int) (string, error) {
	return internal.NumericCode(n)
}
