// File: anonymizer/anonymizer.go
package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VisibleTagLength is the number of leading characters of an enrollment hash
// shown to voters as a display handle. Short enough for casual display, not a
// security boundary.
const VisibleTagLength = 10

const hashPrefix = "0x"

// EnrollmentHash derives the one-way commitment binding a voter's enrollment
// identifier to a single election. It is the only join key receipts carry
// off-chain: deterministic so lookups are idempotent, and not reversible to
// the enrollment without knowing both inputs.
func EnrollmentHash(enrollment string, electionID uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", enrollment, electionID)))
	return hashPrefix + hex.EncodeToString(sum[:])
}

// VisibleTag returns the short display prefix of an enrollment hash.
func VisibleTag(enrollmentHash string) string {
	if len(enrollmentHash) <= VisibleTagLength {
		return enrollmentHash
	}
	return enrollmentHash[:VisibleTagLength]
}

// IsEnrollmentHash reports whether s has the fixed width and prefix this
// package produces.
func IsEnrollmentHash(s string) bool {
	if !strings.HasPrefix(s, hashPrefix) {
		return false
	}
	body := s[len(hashPrefix):]
	if len(body) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}
