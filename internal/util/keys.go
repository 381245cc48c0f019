package util

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// StorageKey returns the single provider key holding a namespace's snapshot.
func StorageKey(namespace string) string {
	return "pagestate:" + namespace
}

// FileName maps an arbitrary storage key to a flat, filesystem-safe name:
// sanitized key + "-" + first 16 hex chars of its sha256.
func FileName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := b.String()
	if len(clean) > 64 {
		clean = clean[:64]
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s-%x", clean, sum[:8])
}
