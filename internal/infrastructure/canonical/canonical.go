package canonical

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// JSON returns the RFC 8785 (JCS) canonical form of JSON input.
func JSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Digest canonicalizes JSON (RFC 8785) and returns a sha256 hex digest.
// Equal objects digest equally regardless of key order or whitespace.
func Digest(input []byte) (string, error) {
	c, err := JSON(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}
