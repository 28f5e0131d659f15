package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString derives a short stable key from input. Used for cache keys
// only, never for anything security-sensitive.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
