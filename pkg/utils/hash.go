package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:16])
}

// HashText collapses whitespace and case before hashing so that trivially
// different renderings of the same request text share a cache key.
func HashText(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return HashString(normalized)
}
