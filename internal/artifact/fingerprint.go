package artifact

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint derives the artifact namespace key for a user message: the
// lowercase hex MD5 digest of its bytes.
func Fingerprint(message string) string {
	sum := md5.Sum([]byte(message))
	return hex.EncodeToString(sum[:])
}
