// Package hashing provides the content-identity primitives for the
// deduplicator: the exact SHA-256 fingerprint over normalized identifying
// fields, the 64-bit SimHash over message tokens, and Hamming distance.
//
// CRITICAL: Deterministic. Same inputs => same outputs. No clock, no I/O.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeMessage lowercases, collapses every whitespace run to a single
// space, and trims. Two messages differing only in case and whitespace
// normalize identically.
func NormalizeMessage(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Fingerprint returns the 64-char lowercase hex SHA-256 over
// "user_id|event_type|normalized_message|source".
func Fingerprint(userID, eventType, message, source string) string {
	canonical := userID + "|" + eventType + "|" + NormalizeMessage(message) + "|" + source
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
