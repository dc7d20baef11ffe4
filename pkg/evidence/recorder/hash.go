package recorder

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxHashSize is the maximum number of bytes hashed from a single value.
const MaxHashSize = 1024 * 1024

// HashString returns the hex-encoded SHA-256 of s, or "" for an empty string.
// Only the first MaxHashSize bytes are hashed.
func HashString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > MaxHashSize {
		s = s[:MaxHashSize]
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TruncateString shortens s to at most maxLen runes, appending "..." when cut.
// A maxLen of zero or less disables truncation.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
