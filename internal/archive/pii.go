package archive

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// HashIdentifier returns the hex-encoded SHA-256 hash of an identifier.
func HashIdentifier(id string) string {
	h := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", h)
}

// MaskMemberID keeps only the last four characters of an insurance member ID.
func MaskMemberID(memberID string) string {
	memberID = strings.TrimSpace(memberID)
	if len(memberID) <= 4 {
		return strings.Repeat("*", len(memberID))
	}
	return strings.Repeat("*", len(memberID)-4) + memberID[len(memberID)-4:]
}
